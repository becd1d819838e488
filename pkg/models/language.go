package models

// Language identifies the programming language a task's generated code is
// written in. It selects the runtime that executes the code.
type Language string

const (
	// LanguagePython runs generated code with a Python interpreter.
	LanguagePython Language = "python"
	// LanguageGo runs generated code with an embedded Go interpreter.
	LanguageGo Language = "go"
)

// Valid returns true if the language is a known value.
func (l Language) Valid() bool {
	switch l {
	case LanguagePython, LanguageGo:
		return true
	default:
		return false
	}
}

// OrDefault returns the language, or LanguagePython when unset.
func (l Language) OrDefault() Language {
	if l == "" {
		return LanguagePython
	}
	return l
}
