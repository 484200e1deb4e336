package db

import (
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"
)

const journalKey = "journal_db"

// Inject exposes the journal database to the handlers of the group it is
// attached to.
func Inject(journal *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if journal != nil {
			c.Set(journalKey, journal)
		}
		c.Next()
	}
}

// FromContext returns the journal database set by Inject.
func FromContext(c *gin.Context) (*gorm.DB, bool) {
	v, ok := c.Get(journalKey)
	if !ok {
		return nil, false
	}
	journal, ok := v.(*gorm.DB)
	return journal, ok && journal != nil
}
