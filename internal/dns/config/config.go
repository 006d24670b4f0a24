package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigFileEnv names the environment variable holding an optional config
// file path. Values from the file sit between the defaults and DNS_ variables.
const ConfigFileEnv = "DNSQ_CONFIG"

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// Server is the DNS server to query in ip:port format.
	Server string `koanf:"server" validate:"required,ip_port"`

	// Transport selects the wire protocol: "udp", "tcp", or "dot".
	Transport string `koanf:"transport" validate:"required,oneof=udp tcp dot"`

	// Timeout is how long, in seconds, a query may stay unanswered.
	Timeout int `koanf:"timeout" validate:"required,gte=1,lte=60"`

	// TLSServerName overrides the name the DoT certificate is checked against.
	TLSServerName string `koanf:"tls_server_name" validate:"omitempty,hostname_rfc1123"`

	// TLSInsecure disables DoT certificate verification. Testing only.
	TLSInsecure bool `koanf:"tls_insecure"`

	// RetiredIDs is the number of recently used message ids kept out of
	// circulation. Zero selects the driver default.
	RetiredIDs int `koanf:"retired_ids" validate:"gte=0,lte=16384"`

	// DNSSEC requests DNSSEC records and only accepts authenticated answers.
	DNSSEC bool `koanf:"dnssec"`

	// CertBundle is an optional PKCS#12 client identity presented over DoT.
	CertBundle string `koanf:"cert_bundle" validate:"required_with=CertPassword"`

	// CertPassword decrypts CertBundle.
	CertPassword string `koanf:"cert_password"`

	// Proxy is an optional socks5:// URL used for tcp and dot.
	Proxy string `koanf:"proxy" validate:"omitempty,url"`
}

// DEFAULT_APP_CONFIG defines the default application configuration settings for the DNS client.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:        "prod",
	LogLevel:   "info",
	Server:     "1.1.1.1:53",
	Transport:  "udp",
	Timeout:    5,
	RetiredIDs: 1024,
}

// QueryTimeout returns Timeout as a duration.
func (c *AppConfig) QueryTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// validIPPort validates whether the provided field value is a valid IP address and port combination.
// It expects the value to be in the format "IP:Port". The function returns true if the IP address
// is valid and both the IP and port are non-empty; otherwise, it returns false.
func validIPPort(fl validator.FieldLevel) bool {
	// stringify the field value to get the IP:Port format.
	addr := fl.Field().String()
	// Split the address into IP and port.
	ip, port, err := net.SplitHostPort(addr)
	if err != nil || ip == "" || port == "" {
		return false
	}
	// Check if the IP address is valid.
	if net.ParseIP(ip) == nil {
		return false
	}
	// Check if the port is a valid number between 1 and 65535.
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// envLoader is a function that loads environment variables with the prefix "DNS_".
// It transforms the keys to lowercase and removes the prefix,
// and can be mocked in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: "DNS_",
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, "DNS_"))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads default configuration values into the provided Koanf instance
// using the structs provider and the DEFAULT_APP_CONFIG struct. It returns an error
// if loading fails.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// fileLoader loads the optional config file named by ConfigFileEnv. The
// format follows the extension: .yaml/.yml, .json or .toml.
var fileLoader = func(k *koanf.Koanf) error {
	path := strings.TrimSpace(os.Getenv(ConfigFileEnv))
	if path == "" {
		return nil
	}
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	case ".toml":
		parser = toml.Parser()
	default:
		return fmt.Errorf("unsupported config file format: %s", path)
	}
	return k.Load(file.Provider(path), parser)
}

// registerValidation registers a custom validation function "ip_port" with the provided validator.
// It associates the "ip_port" tag with the validIPPort validation logic.
// Returns an error if registration fails.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("ip_port", validIPPort)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = fileLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading config file: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig

	// Unmarshal the loaded configuration into AppConfig struct.
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	// Register the custom validation function for IP:Port format.
	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
