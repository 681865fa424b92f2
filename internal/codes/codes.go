package codes

// Process exit codes per error category
const (
	Success    = 0
	General    = 1
	Config     = 2
	Resolution = 3
	Build      = 4
	Internal   = 70
)

// descriptions maps exit codes to what they mean
var descriptions = map[int]string{
	Success:    "Success",
	General:    "General failure",
	Config:     "Invalid configuration",
	Resolution: "Failed to resolve build products",
	Build:      "A target failed to build",
	Internal:   "Internal error",
}

// IsSuccess returns true if the exit code indicates a successful run
func IsSuccess(code int) bool {
	return code == Success
}

// Describe returns the description for a given exit code, or a generic message if unknown
func Describe(code int) string {
	if msg, ok := descriptions[code]; ok {
		return msg
	}

	return "Unknown error"
}
