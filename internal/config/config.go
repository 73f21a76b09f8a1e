package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/convert"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/fdf"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/infopath"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/logging"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/normalize"
)

const (
	// Mode constants
	ModeBatch = "batch"
	ModeWatch = "watch"
	ModeStdio = "stdio"

	// Log formats
	FormatConsole = "console"
	FormatJSON    = "json"

	// Default values
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
	DefaultTemplate    = "FinalSheet2024.pdf"
	DefaultDebounce    = 500 * time.Millisecond

	// EnvPrefix is prepended to every environment variable
	EnvPrefix = "XML2FDF"
)

// Config holds all configuration for the converter
type Config struct {
	// Run configuration
	Mode           string // "batch", "watch" or "stdio"
	InputDirectory string
	ConfigFile     string

	// Output configuration
	TemplatePath   string
	OutputSuffix   string
	EscapeLiterals bool
	CheckTemplate  bool

	// Extraction configuration
	NamespaceMode      string
	MasterElement      string
	MasterPriority     []string
	ContainerElement   string
	ContainerPrefix    string
	DataPrefix         string
	ExtendedAttributes string

	// Normalization configuration
	EncodingPolicy string
	Placeholder    string

	// Watch configuration
	Debounce    time.Duration
	InitialScan bool

	// Application configuration
	Version     string
	ServerName  string
	LogLevel    string
	LogFormat   string
	MaxFileSize int64 // Maximum XML file size in bytes
	NoProgress  bool
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		// Fallback to current directory if working directory cannot be determined
		currentDir = "."
	}

	return &Config{
		Mode:               ModeBatch,
		InputDirectory:     currentDir,
		TemplatePath:       DefaultTemplate,
		OutputSuffix:       convert.DefaultOutputSuffix,
		EscapeLiterals:     true,
		CheckTemplate:      true,
		NamespaceMode:      string(infopath.NamespaceModeDynamic),
		MasterElement:      infopath.DefaultMasterElement,
		ContainerElement:   infopath.DefaultContainerElement,
		ContainerPrefix:    infopath.PrefixDataFormSolution,
		DataPrefix:         infopath.PrefixMyFields,
		ExtendedAttributes: string(infopath.AttributeNormalize),
		EncodingPolicy:     string(normalize.EncodingReplace),
		Placeholder:        normalize.DefaultPlaceholder,
		Debounce:           DefaultDebounce,
		InitialScan:        true,
		Version:            "1.0.0",
		ServerName:         "xml2fdf",
		LogLevel:           DefaultLogLevel,
		LogFormat:          FormatConsole,
		MaxFileSize:        DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	// Check for version flag before parsing
	if err := checkVersionFlag(); err != nil {
		return nil, err
	}

	pflag.Parse()

	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	populateConfigFromViper(cfg)

	// Positional argument overrides --dir, as in "xml2fdf ./forms"
	if args := pflag.Args(); len(args) > 0 {
		cfg.InputDirectory = args[0]
	}

	// Expand paths if needed
	if cfg.InputDirectory != "" {
		if expandedPath, err := filepath.Abs(cfg.InputDirectory); err == nil {
			cfg.InputDirectory = expandedPath
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(cfg *Config) {
	// Set environment variable prefix; "log-level" reads XML2FDF_LOG_LEVEL
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("mode", cfg.Mode)
	viper.SetDefault("dir", cfg.InputDirectory)
	viper.SetDefault("template", cfg.TemplatePath)
	viper.SetDefault("output-suffix", cfg.OutputSuffix)
	viper.SetDefault("escape-literals", cfg.EscapeLiterals)
	viper.SetDefault("check-template", cfg.CheckTemplate)
	viper.SetDefault("namespaces", cfg.NamespaceMode)
	viper.SetDefault("master-element", cfg.MasterElement)
	viper.SetDefault("master-priority", cfg.MasterPriority)
	viper.SetDefault("container-element", cfg.ContainerElement)
	viper.SetDefault("container-prefix", cfg.ContainerPrefix)
	viper.SetDefault("data-prefix", cfg.DataPrefix)
	viper.SetDefault("extended-attributes", cfg.ExtendedAttributes)
	viper.SetDefault("encoding", cfg.EncodingPolicy)
	viper.SetDefault("placeholder", cfg.Placeholder)
	viper.SetDefault("debounce", cfg.Debounce)
	viper.SetDefault("initial-scan", cfg.InitialScan)
	viper.SetDefault("log-level", cfg.LogLevel)
	viper.SetDefault("log-format", cfg.LogFormat)
	viper.SetDefault("max-file-size", cfg.MaxFileSize)
	viper.SetDefault("no-progress", cfg.NoProgress)
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(cfg *Config) {
	pflag.String("mode", cfg.Mode, "Run mode: 'batch' converts once, 'watch' converts new files, 'stdio' serves MCP tools")
	pflag.String("dir", cfg.InputDirectory, "Directory containing InfoPath XML files")
	pflag.String("config", "", "Optional config file (yaml, json or toml)")
	pflag.String("template", cfg.TemplatePath, "PDF template path written into every FDF file")
	pflag.String("output-suffix", cfg.OutputSuffix, "Suffix of the sibling output folder")
	pflag.Bool("escape-literals", cfg.EscapeLiterals, "Escape \\, ( and ) inside FDF literal strings")
	pflag.Bool("check-template", cfg.CheckTemplate, "Inspect the PDF template before converting")
	pflag.String("namespaces", cfg.NamespaceMode, "Namespace discovery: 'dynamic' scans each file, 'static' uses the built-in table")
	pflag.String("master-element", cfg.MasterElement, "Local name of the master record element")
	pflag.StringSlice("master-priority", cfg.MasterPriority, "Prefixes searched first for master elements")
	pflag.String("container-element", cfg.ContainerElement, "Local name of the extended fields container")
	pflag.String("container-prefix", cfg.ContainerPrefix, "Namespace prefix of the extended fields container")
	pflag.String("data-prefix", cfg.DataPrefix, "Namespace prefix of extended field elements")
	pflag.String("extended-attributes", cfg.ExtendedAttributes, "Extended attribute values: 'normalize' or 'raw'")
	pflag.String("encoding", cfg.EncodingPolicy, "Non Latin-1 characters: 'replace', 'drop' or 'strict'")
	pflag.String("placeholder", cfg.Placeholder, "Replacement for characters outside Latin-1")
	pflag.Duration("debounce", cfg.Debounce, "Quiet period before a changed file is converted (watch mode)")
	pflag.Bool("initial-scan", cfg.InitialScan, "Convert existing files when watching starts")
	pflag.String("log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.String("log-format", cfg.LogFormat, "Log format (console, json)")
	pflag.Int64("max-file-size", cfg.MaxFileSize, "Maximum XML file size in bytes")
	pflag.Bool("no-progress", cfg.NoProgress, "Disable the progress bar")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper() {
	pflag.VisitAll(func(f *pflag.Flag) {
		_ = viper.BindPFlag(f.Name, f)
	})
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nxml2fdf - Convert InfoPath XML submissions into FDF files\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s --dir=/path/to/forms                      # convert once\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --template=C:/Forms/Final.pdf ./forms     # custom template\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=watch --dir=/path/to/incoming      # convert as files arrive\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --mode=stdio --dir=/path/to/forms         # MCP server\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  %s_MODE           Run mode\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_DIR            Input directory\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_TEMPLATE       PDF template path\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_ENCODING       Encoding policy\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_LOG_LEVEL      Log level\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  %s_MAX_FILE_SIZE  Maximum file size\n", EnvPrefix)
		fmt.Fprintf(os.Stderr, "  Every other flag maps to %s_<FLAG> with dashes as underscores.\n", EnvPrefix)
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag() error {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return fmt.Errorf("version requested")
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(cfg *Config) {
	cfg.Mode = viper.GetString("mode")
	cfg.InputDirectory = viper.GetString("dir")
	cfg.ConfigFile = viper.GetString("config")
	cfg.TemplatePath = viper.GetString("template")
	cfg.OutputSuffix = viper.GetString("output-suffix")
	cfg.EscapeLiterals = viper.GetBool("escape-literals")
	cfg.CheckTemplate = viper.GetBool("check-template")
	cfg.NamespaceMode = viper.GetString("namespaces")
	cfg.MasterElement = viper.GetString("master-element")
	cfg.MasterPriority = viper.GetStringSlice("master-priority")
	cfg.ContainerElement = viper.GetString("container-element")
	cfg.ContainerPrefix = viper.GetString("container-prefix")
	cfg.DataPrefix = viper.GetString("data-prefix")
	cfg.ExtendedAttributes = viper.GetString("extended-attributes")
	cfg.EncodingPolicy = viper.GetString("encoding")
	cfg.Placeholder = viper.GetString("placeholder")
	cfg.Debounce = viper.GetDuration("debounce")
	cfg.InitialScan = viper.GetBool("initial-scan")
	cfg.LogLevel = viper.GetString("log-level")
	cfg.LogFormat = viper.GetString("log-format")
	cfg.MaxFileSize = viper.GetInt64("max-file-size")
	cfg.NoProgress = viper.GetBool("no-progress")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate mode
	if c.Mode != ModeBatch && c.Mode != ModeWatch && c.Mode != ModeStdio {
		return errors.New("mode must be one of 'batch', 'watch' or 'stdio'")
	}

	// Validate input directory
	if c.InputDirectory == "" {
		return errors.New("input directory cannot be empty")
	}
	info, err := os.Stat(c.InputDirectory)
	if err != nil {
		return fmt.Errorf("cannot access input directory %s: %w", c.InputDirectory, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("input path is not a directory: %s", c.InputDirectory)
	}

	if strings.TrimSpace(c.TemplatePath) == "" {
		return errors.New("template path cannot be empty")
	}

	if c.OutputSuffix == "" {
		return errors.New("output suffix cannot be empty")
	}

	if mode := infopath.NamespaceMode(c.NamespaceMode); mode != infopath.NamespaceModeDynamic && mode != infopath.NamespaceModeStatic {
		return fmt.Errorf("invalid namespace mode: %s (must be one of: dynamic, static)", c.NamespaceMode)
	}

	if !infopath.AttributePolicy(c.ExtendedAttributes).Valid() {
		return fmt.Errorf("invalid extended attribute policy: %s (must be one of: normalize, raw)", c.ExtendedAttributes)
	}

	if !normalize.EncodingPolicy(c.EncodingPolicy).Valid() {
		return fmt.Errorf("invalid encoding policy: %s (must be one of: replace, drop, strict)", c.EncodingPolicy)
	}

	if c.EncodingPolicy == string(normalize.EncodingReplace) && !normalize.IsLatin1(c.Placeholder) {
		return fmt.Errorf("placeholder %q must be representable in Latin-1", c.Placeholder)
	}

	if c.MasterElement == "" || c.ContainerElement == "" {
		return errors.New("master and container element names cannot be empty")
	}

	// Validate max file size
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	if c.Mode == ModeWatch && c.Debounce <= 0 {
		return errors.New("debounce must be positive in watch mode")
	}

	// Validate log level
	if !logging.ValidLevel(c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: trace, debug, info, warn, error)", c.LogLevel)
	}

	if c.LogFormat != FormatConsole && c.LogFormat != FormatJSON {
		return fmt.Errorf("invalid log format: %s (must be one of: console, json)", c.LogFormat)
	}

	return nil
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, InputDirectory: %s, TemplatePath: %s, NamespaceMode: %s, "+
		"EncodingPolicy: %s, EscapeLiterals: %t, LogLevel: %s, MaxFileSize: %d}",
		c.Mode, c.InputDirectory, c.TemplatePath, c.NamespaceMode,
		c.EncodingPolicy, c.EscapeLiterals, c.LogLevel, c.MaxFileSize)
}

// IsBatchMode returns true for a one-shot conversion run
func (c *Config) IsBatchMode() bool {
	return c.Mode == ModeBatch
}

// IsWatchMode returns true when converting files as they appear
func (c *Config) IsWatchMode() bool {
	return c.Mode == ModeWatch
}

// IsStdioMode returns true if the converter is served over MCP stdio
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// ExtractorOptions returns the extraction settings
func (c *Config) ExtractorOptions() infopath.Options {
	return infopath.Options{
		MasterElement:      c.MasterElement,
		MasterPriority:     c.MasterPriority,
		ContainerElement:   c.ContainerElement,
		ContainerPrefix:    c.ContainerPrefix,
		DataPrefix:         c.DataPrefix,
		ExtendedAttributes: infopath.AttributePolicy(c.ExtendedAttributes),
		Pipeline:           normalize.NewPipeline(normalize.EncodingPolicy(c.EncodingPolicy), c.Placeholder),
	}
}

// ConverterOptions returns the settings for convert.NewConverter
func (c *Config) ConverterOptions() convert.Options {
	return convert.Options{
		TemplatePath:  c.TemplatePath,
		NamespaceMode: infopath.NamespaceMode(c.NamespaceMode),
		MaxFileSize:   c.MaxFileSize,
		Extractor:     c.ExtractorOptions(),
		FDF:           fdf.Options{EscapeLiterals: c.EscapeLiterals},
	}
}

// WatchOptions returns the settings for convert.NewWatcher
func (c *Config) WatchOptions() convert.WatchOptions {
	return convert.WatchOptions{Debounce: c.Debounce, InitialScan: c.InitialScan}
}
