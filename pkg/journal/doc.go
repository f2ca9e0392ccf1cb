// Package journal records every trace delivery attempt locally.
//
// Each Send to the collector produces one Entry with the event envelope
// (chat, role, session id), the outcome (status, trace id, error kind) and
// the latency. Message texts are only kept when recording is enabled.
//
// Entries are written through a Recorder so delivery never waits on the
// database:
//
//	store, _ := storage.Open(cfg.Journal, logger)
//	rec := journal.NewRecorder(store, &journal.RecorderConfig{
//		RecordMessages: cfg.Journal.RecordMessages,
//	}, collector, logger)
//	defer rec.Close()
//
//	client := transport.New(transport.Options{Journal: rec})
//
// Backends live in the storage subpackage; the retention subpackage prunes
// old entries on a cron schedule.
package journal
