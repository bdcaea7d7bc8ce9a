package storage

import "curvePool/internal/model"

// Storage persists normalized pool logs. Records in a batch keep their order.
type Storage interface {
	PutLogBatch(logs []model.LogRecord) error
}

var _ Storage = (*JsonlStorage)(nil)
