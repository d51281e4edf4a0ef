package config

import (
	"fmt"
	"io"

	"github.com/loykin/s3smoke/internal/common"
	"github.com/loykin/s3smoke/internal/util"
)

// SetupLogging configures the global logger based on config settings.
// Logs go to w (stderr when nil) so they never interleave with the
// console transcript on stdout.
func (c *Config) SetupLogging(w io.Writer) error {
	level, ok := common.ParseLogLevel(util.TrimAndLower(c.Logging.Level))
	if !ok {
		return fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}

	format := util.TrimAndLower(c.Logging.Format)
	useColor := false
	if c.Logging.Color != nil {
		useColor = *c.Logging.Color
	} else if format == "color" || format == "colour" {
		useColor = true
	}

	var logger *common.Logger
	switch format {
	case "json":
		logger = common.NewJSONLogger(level, w)
	case "color", "colour":
		logger = common.NewColorLogger(level, w)
	case "text", "":
		if useColor {
			logger = common.NewColorLogger(level, w)
		} else {
			logger = common.NewLogger(level, w)
		}
	default:
		return fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}

	maskingEnabled := true
	if c.Logging.MaskSensitive != nil {
		maskingEnabled = *c.Logging.MaskSensitive
	}
	logger.EnableMasking(maskingEnabled)
	common.SetDefaultLogger(logger)
	common.EnableMasking(maskingEnabled)

	logger.Debug("logging configured",
		"level", level.String(),
		"format", util.TrimWithDefault(format, "text"),
		"color", useColor,
		"mask_sensitive", maskingEnabled)
	return nil
}
