package paging

import (
	log "github.com/sirupsen/logrus"
)

// Options represents the options that can be set when creating a storage.
type Options struct {
	// When enabled, the storage will perform a Check() after every mutation.
	// A panic is issued if the storage is in an inconsistent state. This
	// flag walks every slot so it should only be used for debugging
	// purposes.
	StrictMode bool

	// Logger receives mode transitions at debug level. Nil means the
	// logrus standard logger.
	Logger *log.Entry
}

var DefaultOptions = &Options{
	StrictMode: false,
}

func (o *Options) logger() *log.Entry {
	if o == nil || o.Logger == nil {
		return log.NewEntry(log.StandardLogger())
	}
	return o.Logger
}
