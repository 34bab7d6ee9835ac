package firmata

import (
	"errors"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arloliu/go-firmata/codec"
)

// yamlConfig mirrors the options that can be set from a configuration file.
// Pointer fields distinguish "absent" from zero values.
type yamlConfig struct {
	ResponseTimeout     *time.Duration `yaml:"responseTimeout"`
	CloseTimeout        *time.Duration `yaml:"closeTimeout"`
	ShutdownProbe       *int           `yaml:"shutdownProbe"`
	UnsupportedText     *string        `yaml:"unsupportedText"`
	FeatureQuery        *bool          `yaml:"featureQuery"`
	FeatureQueryTimeout *time.Duration `yaml:"featureQueryTimeout"`
	SamplingInterval    *time.Duration `yaml:"samplingInterval"`
}

// LoadConfigYAML reads engine options from a YAML document such as:
//
//	responseTimeout: 2s
//	closeTimeout: 500ms
//	shutdownProbe: 0x0F
//	unsupportedText: Unhandled sysex command
//	featureQuery: true
//	featureQueryTimeout: 1s
//	samplingInterval: 19ms
//
// Keys that are absent keep their defaults. The returned options are meant
// for [NewEngineConfig]; values are validated there.
func LoadConfigYAML(r io.Reader) ([]Option, error) {
	var doc yamlConfig

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}

		return nil, fmt.Errorf("firmata: decode yaml config: %w", err)
	}

	var opts []Option
	if doc.ResponseTimeout != nil {
		opts = append(opts, WithResponseTimeout(*doc.ResponseTimeout))
	}
	if doc.CloseTimeout != nil {
		opts = append(opts, WithCloseTimeout(*doc.CloseTimeout))
	}
	if doc.ShutdownProbe != nil {
		if *doc.ShutdownProbe < 0 || *doc.ShutdownProbe > 0x7F {
			return nil, fmt.Errorf("firmata: shutdown probe %d is not a sysex id", *doc.ShutdownProbe)
		}
		opts = append(opts, WithShutdownProbe(codec.SysexCmd(*doc.ShutdownProbe)))
	}
	if doc.UnsupportedText != nil {
		opts = append(opts, WithUnsupportedText(*doc.UnsupportedText))
	}
	if doc.FeatureQuery != nil {
		opts = append(opts, WithFeatureQuery(*doc.FeatureQuery))
	}
	if doc.FeatureQueryTimeout != nil {
		opts = append(opts, WithFeatureQueryTimeout(*doc.FeatureQueryTimeout))
	}
	if doc.SamplingInterval != nil {
		opts = append(opts, WithSamplingInterval(*doc.SamplingInterval))
	}

	return opts, nil
}
