package mlog

// FormatID formats a request ID for logging.
//
// UUIDs are shortened to their first 8 characters, anything else is shown
// in full.
func FormatID(id string) string {
	if len(id) == 36 && id[8] == '-' {
		return id[:8]
	}

	return id
}
