package params

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Decode copies resolved parameters into an operator's config struct.
// Fields are matched by their `param` tag.
func Decode(values map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "param",
		ErrorUnused: true,
		Result:      out,
	})
	if err != nil {
		return fmt.Errorf("creating decoder: %w", err)
	}
	if err := decoder.Decode(values); err != nil {
		return fmt.Errorf("decoding parameters: %w", err)
	}
	return nil
}
