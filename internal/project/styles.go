package project

import (
	"fmt"
	"strings"

	arborerrors "github.com/conneroisu/arbor/internal/errors"
)

// StyleVariant is a style file applied under a media query of its base style.
type StyleVariant struct {
	File       FilePath
	Media      string
	Expression string
}

// Header opens the @media block wrapping the variant.
func (v StyleVariant) Header() string {
	if v.Expression == "" {
		return "@media " + v.Media + " {"
	}
	return "@media " + v.Media + " and " + v.Expression + " {"
}

// MediaQuery returns the media query declared for alias.
func (p *Project) MediaQuery(alias string) (MediaQuery, bool) {
	q, ok := p.queries[alias]
	return q, ok
}

// StyleVariants returns the media query variants of a base style, in file
// name order. page/index/index_w800.css is a variant of page/index/index.css
// when w800 is a declared alias.
func (p *Project) StyleVariants(base FilePath) ([]StyleVariant, error) {
	if len(p.queries) == 0 || p.isStyleVariant(base) {
		return nil, nil
	}
	files, err := p.Files(base.Dir())
	if err != nil {
		return nil, err
	}

	var variants []StyleVariant
	for _, file := range files {
		if !file.IsStyle() || file.BaseName() != base.BaseName() || !p.isStyleVariant(file) {
			continue
		}
		variant, err := p.styleVariant(file)
		if err != nil {
			return nil, err
		}
		variants = append(variants, variant)
	}
	return variants, nil
}

// isStyleVariant reports style files whose variants are all media query
// aliases.
func (p *Project) isStyleVariant(file FilePath) bool {
	v := file.Variants()
	if len(v.Others) == 0 || !v.IsLocaleNeutral() {
		return false
	}
	for _, alias := range v.Others {
		if _, ok := p.queries[alias]; !ok {
			return false
		}
	}
	return true
}

// styleVariant combines the queries of file. Mixed media fall back to all;
// expressions are joined with and.
func (p *Project) styleVariant(file FilePath) (StyleVariant, error) {
	variant := StyleVariant{File: file}
	seen := make(map[string]bool)
	var expressions []string
	for _, alias := range file.Variants().Others {
		if seen[alias] {
			return variant, arborerrors.NewConfigError(arborerrors.ErrCodeConfigInvalid,
				fmt.Sprintf("media query %s repeated in %s", alias, file))
		}
		seen[alias] = true

		q := p.queries[alias]
		switch variant.Media {
		case "", q.Media:
			variant.Media = q.Media
		default:
			variant.Media = "all"
		}
		if q.Expression != "" {
			expressions = append(expressions, "( "+q.Expression+" )")
		}
	}
	variant.Expression = strings.Join(expressions, " and ")
	return variant, nil
}
