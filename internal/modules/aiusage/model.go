// README: Monthly allowance of document extractions per user.
package aiusage

import "errors"

// ErrInsufficientTokens is returned when a user has no extractions left this month.
var ErrInsufficientTokens = errors.New("monthly document-extraction quota exhausted")

// DefaultTokens is the number of extractions granted per month.
const DefaultTokens = 30

const monthLayout = "2006-01"
