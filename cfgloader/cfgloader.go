// Package cfgloader loads and validates configuration at the start of an application.
package cfgloader

import (
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"slices"
	"strings"

	"github.com/code19m/errx"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	EnvProduction = "production"
	EnvStaging    = "staging"
	EnvDev        = "dev"
	EnvLocal      = "local"
	EnvTest       = "test"

	codeConfigInvalid = "CONFIG_INVALID"
)

// MustLoad loads ./config/${ENVIRONMENT}.yaml into T and exits the process on any failure.
//
// Values are processed in this order: ${VAR} expansion from the environment (a .env file is
// loaded first when present), yaml unmarshalling, `default` struct tags, `validate` struct tags.
// The loaded configuration is printed with `mask:"true"` fields hidden.
//
//	type Config struct {
//	    Host string `yaml:"host" validate:"required"`
//	    Port int    `yaml:"port" default:"8080"`
//	}
func MustLoad[T any]() T {
	_ = godotenv.Load()

	env := os.Getenv("ENVIRONMENT")
	if !slices.Contains([]string{EnvProduction, EnvStaging, EnvDev, EnvLocal, EnvTest}, env) {
		slog.Error(
			"[cfgloader]: ENVIRONMENT env variable is not set or invalid. Choices are: production, staging, dev, local, test",
		)
		os.Exit(1)
	}

	cfg, err := Load[T](fmt.Sprintf("./config/%s.yaml", env))
	if err != nil {
		slog.Error(fmt.Sprintf("[cfgloader]: %s", err.Error()))
		os.Exit(1)
	}

	printConfig(cfg)

	return cfg
}

// Load reads, expands, defaults and validates the yaml file at path.
func Load[T any](path string) (T, error) {
	var cfg T

	if reflect.ValueOf(cfg).Kind() == reflect.Ptr {
		return cfg, errx.New("config type must not be a pointer", errx.WithCode(codeConfigInvalid))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errx.Wrap(err, errx.WithCode(codeConfigInvalid), errx.WithDetails(errx.D{"path": path}))
	}

	return Parse[T](data)
}

// Parse applies env expansion, defaults and validation to raw yaml.
func Parse[T any](data []byte) (T, error) {
	var cfg T

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, errx.Wrap(err, errx.WithCode(codeConfigInvalid))
	}

	if err := defaults.Set(&cfg); err != nil {
		return cfg, errx.Wrap(err, errx.WithCode(codeConfigInvalid))
	}

	if err := validate(&cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func validate(cfg any) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	err := v.Struct(cfg)
	if err == nil {
		return nil
	}

	errs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns the concrete type
	if !ok {
		return errx.Wrap(err, errx.WithCode(codeConfigInvalid))
	}

	failedFields := make(errx.M, len(errs))
	described := make([]string, 0, len(errs))
	for _, fe := range errs {
		tag := fe.Tag()
		if fe.Param() != "" {
			tag += "=" + fe.Param()
		}
		failedFields[fe.Namespace()] = tag
		described = append(described, fmt.Sprintf("%s: %s", fe.Namespace(), tag))
	}

	return errx.New(
		"invalid config fields -> "+strings.Join(described, ",  "),
		errx.WithCode(codeConfigInvalid),
		errx.WithType(errx.T_Validation),
		errx.WithFields(failedFields),
	)
}
