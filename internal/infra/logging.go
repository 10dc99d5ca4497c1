// README: apex/log handler and level selection.
package infra

import (
	"io"
	"strings"

	"github.com/apex/log"
	"github.com/apex/log/handlers/json"
	"github.com/apex/log/handlers/text"
)

// SetupLogging installs a json or text handler writing to w. Unknown levels
// fall back to info.
func SetupLogging(w io.Writer, level, format string) {
	if strings.EqualFold(format, "json") {
		log.SetHandler(json.New(w))
	} else {
		log.SetHandler(text.New(w))
	}
	lvl, err := log.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
