package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jinzhu/gorm"

	dbpkg "olafo/db"
	"olafo/models"
)

const (
	defaultEventsLimit = 50
	maxEventsLimit     = 200
)

// GET /api/events?limit=N (admin)
func GetEvents(c *gin.Context) {
	db, ok := dbpkg.FromContext(c)
	if !ok {
		RespondError(c, "journal database not configured", http.StatusServiceUnavailable)
		return
	}

	limit := defaultEventsLimit
	if v := strings.TrimSpace(c.Query("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			RespondError(c, "invalid limit", http.StatusBadRequest)
			return
		}
		if n > maxEventsLimit {
			n = maxEventsLimit
		}
		limit = n
	}

	var events []models.Event
	if err := db.Order("id desc").Limit(limit).Find(&events).Error; err != nil {
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, gin.H{"events": events})
}

// GET /api/events/:id (admin) - numeric id or relay id
func GetEventByID(c *gin.Context) {
	db, ok := dbpkg.FromContext(c)
	if !ok {
		RespondError(c, "journal database not configured", http.StatusServiceUnavailable)
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	var event models.Event
	var err error
	if n, perr := strconv.ParseInt(id, 10, 64); perr == nil && n > 0 {
		err = db.First(&event, n).Error
	} else {
		err = db.Where("relay_id = ?", id).First(&event).Error
	}

	if err != nil {
		if gorm.IsRecordNotFoundError(err) {
			RespondError(c, "event not found", http.StatusNotFound)
			return
		}
		RespondError(c, err.Error(), http.StatusInternalServerError)
		return
	}

	RespondSuccess(c, gin.H{"event": event})
}
