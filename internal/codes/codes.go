// Package codes describes the exit codes of the external rendering tools
package codes

// PandocCodes maps pandoc exit codes to their descriptions
var PandocCodes = map[int]string{
	0:  "Success",
	1:  "General failure",
	3:  "Fail on warning",
	4:  "Application error",
	5:  "Template error",
	6:  "Option error",
	21: "Unknown reader",
	22: "Unknown writer",
	23: "Unsupported extension",
	24: "Citeproc error",
	25: "Bibliography error",
	31: "EPUB subdirectory error",
	43: "PDF error",
	44: "XML error",
	47: "PDF program not found",
	61: "HTTP error",
	62: "Should never happen",
	63: "Some error",
	64: "Parse error",
	66: "Make PDF error",
	67: "Syntax map error",
	83: "Filter error",
	84: "Lua error",
	89: "No scripting engine",
	91: "Macro loop",
	92: "UTF-8 decoding error",
	93: "Ipynb decoding error",
	94: "Unsupported charset",
	97: "Could not find data file",
	98: "Could not find metadata file",
	99: "Resource not found",
}

// LaTeXCodes maps pdflatex exit codes to their descriptions
var LaTeXCodes = map[int]string{
	0: "Success",
	1: "Compile errors, see the transcript",
}

// XournalCodes maps xournalpp exit codes to their descriptions
var XournalCodes = map[int]string{
	0: "Success",
	1: "Export failed",
}

var toolCodes = map[string]map[int]string{
	"pandoc":    PandocCodes,
	"pdflatex":  LaTeXCodes,
	"xournalpp": XournalCodes,
}

// SpawnFailed is the exit code recorded when a tool could not be started
const SpawnFailed = -1

// IsSuccess returns true if the exit code indicates a successful run
func IsSuccess(code int) bool {
	return code == 0
}

// GetErrorMessage returns the error message for a tool's exit code, or a generic message if unknown
func GetErrorMessage(tool string, code int) string {
	if code == SpawnFailed {
		return "Could not start tool"
	}

	if msg, ok := toolCodes[tool][code]; ok {
		return msg
	}

	return "Unknown error"
}
