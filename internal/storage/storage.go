package storage

import (
	"github.com/julianstephens/keepup/internal/logger"
	"github.com/julianstephens/keepup/internal/models"
)

// FrequencyValue returns the stored form of f. Unset frequencies are stored as daily.
func FrequencyValue(f models.Frequency) string {
	if f.IsZero() {
		return models.Daily().String()
	}
	return f.String()
}

// ParseStoredFrequency reads a stored frequency. Rows written by other
// clients may hold values outside the closed set; those are read as daily.
func ParseStoredFrequency(habitID, value string) models.Frequency {
	f, err := models.ParseFrequency(value)
	if err != nil {
		logger.Warn("Unrecognized habit frequency, treating as daily", "habit", habitID, "frequency", value)
		return models.Daily()
	}
	return f
}
