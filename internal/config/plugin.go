package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"firestige.xyz/speadcap/internal/core"
)

// DecodePluginConfig decodes a plugin's free-form config map into out, a
// pointer to a struct tagged with `mapstructure`. Values are weakly typed so
// YAML ints, env strings and JSON floats all land in the right field;
// durations may be strings like "100ms" and lists may be comma separated.
func DecodePluginConfig(in map[string]any, out any) error {
	if len(in) == 0 {
		return nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in); err != nil {
		return fmt.Errorf("%w: %v", core.ErrConfigInvalid, err)
	}
	return nil
}
