package postgres

import "time"

func nullTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
