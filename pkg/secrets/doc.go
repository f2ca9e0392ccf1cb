// Package secrets supplies the collector API key.
//
// Two sources exist: StaticSource for a key given in configuration or the
// EXTERNAL_TRACE_API_KEY environment variable, and FileSource for a key
// mounted as a file. A FileSource can watch its file with fsnotify so a
// rotated key is picked up by the next delivery without a restart:
//
//	src, err := secrets.NewFileSource("/var/run/secrets/collector-key", true, logger)
//	if err != nil {
//		return err
//	}
//	defer src.Close()
//
//	client := transport.New(transport.Options{KeySource: src})
//
// Key files must have 0600 or 0400 permissions.
package secrets
