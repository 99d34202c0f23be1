package logging

import (
	"encoding/json"
	"log"
	"time"
)

// Fields is the structured log record for order-pipeline steps. Every
// field except Service is optional.
type Fields struct {
	Service    string `json:"service"`
	OrderID    string `json:"order_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	TrackingID string `json:"tracking_id,omitempty"`
	Step       string `json:"step,omitempty"`
	Status     string `json:"status,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Message    string `json:"message,omitempty"`
}

func Log(fields Fields) {
	payload := map[string]any{
		"service":     fields.Service,
		"order_id":    fields.OrderID,
		"user_id":     fields.UserID,
		"tracking_id": fields.TrackingID,
		"step":        fields.Step,
		"status":      fields.Status,
		"duration_ms": fields.DurationMS,
		"message":     fields.Message,
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("{\"service\":%q,\"status\":\"log_error\",\"error\":%q}", fields.Service, err.Error())
		return
	}
	log.Print(string(data))
}
