package logger

import "errors"

var (
	ErrInvalidOutputPath = errors.New("logger: output_path is required when enable_file is true")
	ErrNoOutputEnabled   = errors.New("logger: at least one output must be enabled")
)
