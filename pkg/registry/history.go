package registry

import (
	"github.com/dbehnke/modem-emu/pkg/database"
	"github.com/dbehnke/modem-emu/pkg/logger"
	"github.com/dbehnke/modem-emu/pkg/modem"
)

// historyRecorder writes finished calls to the call_records table.
type historyRecorder struct {
	repo *database.CallRecordRepository
	log  *logger.Logger
}

func (h *historyRecorder) RecordCall(rec modem.CallRecord) {
	row := toRecord(rec)
	if err := h.repo.Create(&row); err != nil {
		h.log.Warn("Failed to record call",
			logger.Int("instance", rec.Instance),
			logger.String("number", rec.Number),
			logger.Error(err))
	}
}

func toRecord(rec modem.CallRecord) database.CallRecord {
	dir := "mo"
	if rec.Inbound {
		dir = "mt"
	}
	return database.CallRecord{
		Instance:  rec.Instance,
		CallID:    rec.CallID,
		Direction: dir,
		Number:    rec.Number,
		Cause:     int(rec.Cause),
		Remote:    rec.Remote,
		Answered:  rec.Answered,
		Duration:  rec.Ended.Sub(rec.Started).Seconds(),
		StartTime: rec.Started,
		EndTime:   rec.Ended,
	}
}
