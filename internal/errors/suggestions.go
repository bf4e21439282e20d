package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorSuggestion represents a suggestion for fixing an error
type ErrorSuggestion struct {
	Title       string
	Description string
	Example     string
}

var suggestionsByCode = map[string][]ErrorSuggestion{
	ErrCodeMissingVariable: {{
		Title:       "Define the value",
		Description: "Add it to a strings file in the asset directory, or to the locale variant that lacks it",
		Example:     `res/asset/strings_fr.xml: <string><title>Accueil</title></string>`,
	}},
	ErrCodeCircularVariable: {{
		Title:       "Break the reference loop",
		Description: "A value refers back to itself through other values",
	}},
	ErrCodeMissingMedia: {{
		Title:       "Add the media file",
		Description: "Media references name a file of the asset directory without its extension",
		Example:     "@image/logo resolves to res/asset/logo.png",
	}},
	ErrCodeMissingParam: {{
		Title:       "Pass the parameter",
		Description: "The including element must provide every @param the component uses",
		Example:     `<div data-compo="compo/card" data-param="title:Hello"></div>`,
	}},
	ErrCodeMissingLayout: {{
		Title:       "Create the layout",
		Description: "A component directory holds a .htm file named after the directory",
		Example:     "compo/card/card.htm",
	}},
	ErrCodeMissingEditable: {{
		Title:       "Name an existing slot",
		Description: "The template reference names an editable element the template does not have",
		Example:     `data-template="template/base#main" needs <main data-editable="main"> in base.htm`,
	}},
	ErrCodeUnresolvedSlot: {{
		Title:       "Fill or drop the slot",
		Description: "Editable elements left in a composed page must be filled by the page",
	}},
	ErrCodeEditableNotEmpty: {{
		Title:       "Empty the editable element",
		Description: "Content of editable elements is replaced, so the template must leave them empty",
	}},
	ErrCodeCompositionCycle: {{
		Title:       "Break the include loop",
		Description: "A component includes itself, directly or through other components or templates",
	}},
	ErrCodeScriptCycle: {{
		Title:       "Defer the initialisation",
		Description: "Scripts use each other while loading; move one of the uses into a function called later",
	}},
	ErrCodeScriptSyntax: {{
		Title:       "Fix the script",
		Description: "The script could not be parsed for dependency analysis",
	}},
	ErrCodeMissingScript: {{
		Title:       "Check the script source",
		Description: "Local script sources are project relative paths of existing .js files",
	}},
	ErrCodeMissingStyle: {{
		Title:       "Check the style sheet",
		Description: "Local style sheet links are project relative paths of existing .css files",
	}},
	ErrCodeMissingExtension: {{
		Title:       "Give the file an extension",
		Description: "Build numbers are inserted before the extension of each written file",
	}},
	ErrCodeTargetCollision: {{
		Title:       "Rename one of the sources",
		Description: "Build names join directories with '-', so paths that differ only in where a '-' sits flatten to the same file",
		Example:     "a/b-c/x.css and a-b/c/x.css both become style/a-b-c_x.css",
	}},
	ErrCodeConfigInvalid: {{
		Title:       "Check the configuration",
		Description: "Settings come from flags, ARBOR_* environment variables and .arbor.yml",
	}},
}

// Suggest returns hints for the most specific coded error in the chain.
func Suggest(err error) []ErrorSuggestion {
	var codes []string
	for err != nil {
		var ae *ArborError
		if !errors.As(err, &ae) {
			break
		}
		codes = append(codes, ae.Code)
		err = ae.Cause
	}
	for i := len(codes) - 1; i >= 0; i-- {
		if s, ok := suggestionsByCode[codes[i]]; ok {
			return s
		}
	}
	return nil
}

// FormatSuggestions formats suggestions into a user-friendly string
func FormatSuggestions(title string, suggestions []ErrorSuggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var output strings.Builder
	output.WriteString(title + "\n\n")
	output.WriteString("Suggestions:\n")

	for i, suggestion := range suggestions {
		output.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion.Title))
		if suggestion.Description != "" {
			output.WriteString(fmt.Sprintf("     %s\n", suggestion.Description))
		}
		if suggestion.Example != "" {
			output.WriteString(fmt.Sprintf("     Example: %s\n", suggestion.Example))
		}
	}

	return output.String()
}
