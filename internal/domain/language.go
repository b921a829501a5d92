package domain

// Language identifies a supported submission language
type Language string

const (
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageJava       Language = "java"
	LanguageCpp        Language = "cpp"
	LanguageC          Language = "c"
	LanguageGo         Language = "go"
	LanguageRust       Language = "rust"
)

// Runtime is the sandbox runtime a language is executed with
type Runtime struct {
	Language Language `json:"language"`
	Name     string   `json:"runtime"`
	Version  string   `json:"version"`
	FileName string   `json:"fileName"`
}

var runtimes = map[Language]Runtime{
	LanguagePython:     {Language: LanguagePython, Name: "python", Version: "3.10.0", FileName: "main.py"},
	LanguageJavaScript: {Language: LanguageJavaScript, Name: "javascript", Version: "18.15.0", FileName: "main.js"},
	LanguageTypeScript: {Language: LanguageTypeScript, Name: "typescript", Version: "5.0.3", FileName: "main.ts"},
	LanguageJava:       {Language: LanguageJava, Name: "java", Version: "15.0.2", FileName: "Main.java"},
	LanguageCpp:        {Language: LanguageCpp, Name: "c++", Version: "10.2.0", FileName: "main.cpp"},
	LanguageC:          {Language: LanguageC, Name: "c", Version: "10.2.0", FileName: "main.c"},
	LanguageGo:         {Language: LanguageGo, Name: "go", Version: "1.16.2", FileName: "main.go"},
	LanguageRust:       {Language: LanguageRust, Name: "rust", Version: "1.68.2", FileName: "main.rs"},
}

// RuntimeFor returns the runtime for a language and whether it is supported
func RuntimeFor(language Language) (Runtime, bool) {
	rt, ok := runtimes[language]
	return rt, ok
}

// SupportedRuntimes lists every supported runtime ordered by language name
func SupportedRuntimes() []Runtime {
	order := []Language{
		LanguageC, LanguageCpp, LanguageGo, LanguageJava,
		LanguageJavaScript, LanguagePython, LanguageRust, LanguageTypeScript,
	}
	out := make([]Runtime, 0, len(order))
	for _, l := range order {
		out = append(out, runtimes[l])
	}
	return out
}
