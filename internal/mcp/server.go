package mcp

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/config"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/convert"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/descriptions"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/infopath"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/pdftemplate"
	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/security"
)

// maxListedFiles caps the file listing in fdf_server_info
const maxListedFiles = 10

// Server represents the MCP server instance
type Server struct {
	config    *config.Config
	batch     *convert.Batch
	inspector *pdftemplate.Inspector
	validator *security.PathValidator
	mcpServer *server.MCPServer
	logger    zerolog.Logger
}

// NewServer creates a new MCP server instance. Every path a tool receives is
// resolved against the configured input directory.
func NewServer(cfg *config.Config, batch *convert.Batch, logger zerolog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if batch == nil {
		return nil, fmt.Errorf("batch cannot be nil")
	}

	validator, err := security.NewPathValidator(cfg.InputDirectory)
	if err != nil {
		return nil, fmt.Errorf("failed to create path validator: %w", err)
	}

	mcpServer := server.NewMCPServer(
		cfg.ServerName,
		cfg.Version,
		server.WithToolCapabilities(false),
	)

	s := &Server{
		config:    cfg,
		batch:     batch,
		inspector: pdftemplate.NewInspector(cfg.MaxFileSize),
		validator: validator,
		mcpServer: mcpServer,
		logger:    logger.With().Str("component", "mcp").Logger(),
	}

	s.registerTools()

	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	convertFileTool := mcp.NewTool(
		"xml_to_fdf_convert_file",
		mcp.WithDescription(descriptions.ConvertFileDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the XML file, absolute or relative to the input directory"),
		),
		mcp.WithString("output",
			mcp.Description("FDF output path (defaults to the sibling '- CONVERTED' folder)"),
		),
	)
	s.mcpServer.AddTool(convertFileTool, s.handleConvertFile)

	convertDirectoryTool := mcp.NewTool(
		"xml_to_fdf_convert_directory",
		mcp.WithDescription(descriptions.ConvertDirectoryDescription),
		mcp.WithString("directory",
			mcp.Description("Directory to convert (uses the input directory if empty)"),
		),
	)
	s.mcpServer.AddTool(convertDirectoryTool, s.handleConvertDirectory)

	extractFieldsTool := mcp.NewTool(
		"xml_extract_fields",
		mcp.WithDescription(descriptions.ExtractFieldsDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the XML file"),
		),
	)
	s.mcpServer.AddTool(extractFieldsTool, s.handleExtractFields)

	namespacesTool := mcp.NewTool(
		"xml_namespaces",
		mcp.WithDescription(descriptions.NamespacesDescription),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Path to the XML file"),
		),
	)
	s.mcpServer.AddTool(namespacesTool, s.handleNamespaces)

	serverInfoTool := mcp.NewTool(
		"fdf_server_info",
		mcp.WithDescription(descriptions.ServerInfoDescription),
	)
	s.mcpServer.AddTool(serverInfoTool, s.handleServerInfo)
}

// Handler functions
func (s *Server) handleConvertFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.requirePath(request, "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	output := s.batch.OutputPath(path)
	if out, ok := request.GetArguments()["output"].(string); ok && out != "" {
		output = out
	}
	output, err = s.validator.Resolve(output)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("%v (pass an 'output' path inside the input directory)", err)), nil
	}

	outcome := s.batch.Converter().ConvertFile(ctx, path, output)
	s.logger.Info().
		Str("input", path).
		Str("status", string(outcome.Status)).
		Msg("convert file tool called")

	if !outcome.Succeeded() {
		return mcp.NewToolResultError(fmt.Sprintf("Error processing file %s: %s", outcome.FileName, outcome.Error)), nil
	}

	return mcp.NewToolResultText(formatOutcome(outcome)), nil
}

func (s *Server) handleConvertDirectory(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	directory := s.validator.Root()
	if dir, ok := request.GetArguments()["directory"].(string); ok && dir != "" {
		resolved, err := s.validator.Resolve(dir)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		directory = resolved
	}
	if err := s.validator.ValidateDirectory(directory); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	// files at the top of the root would land in a sibling of the root
	jobs, err := s.batch.Plan(directory)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	for _, job := range jobs {
		if err := s.validator.ValidatePath(job.OutputPath); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("%v (convert a subfolder instead)", err)), nil
		}
	}

	report, err := s.batch.Run(ctx, directory, convert.NewLogObserver(s.logger))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatReport(report)), nil
}

func (s *Server) handleExtractFields(ctx context.Context, request mcp.CallToolRequest) (
	*mcp.CallToolResult, error,
) {
	path, err := s.requirePath(request, "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	preview, err := s.batch.Converter().Extract(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatPreview(preview)), nil
}

func (s *Server) handleNamespaces(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := s.requirePath(request, "path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	opts := s.batch.Converter().Options()
	resolution := infopath.ResolveNamespacesFile(path, opts.NamespaceMode)

	text := fmt.Sprintf("Namespaces for: %s\n", path)
	text += fmt.Sprintf("Source: %s\n", resolution.Source)
	if resolution.Err != nil {
		text += fmt.Sprintf("Scan error: %v\n", resolution.Err)
	}
	text += "\nPrefixes:\n"
	for _, prefix := range resolution.Map.Prefixes() {
		text += fmt.Sprintf("  %s = %s\n", prefix, resolution.Map[prefix])
	}

	order := infopath.MasterSearchOrder(resolution.Map, opts.Extractor.MasterPriority)
	text += fmt.Sprintf("\nMaster element search order (%s):\n", opts.Extractor.MasterElement)
	for i, ns := range order {
		text += fmt.Sprintf("  %d. %s (%s)\n", i+1, ns.Prefix, ns.URI)
	}

	return mcp.NewToolResultText(text), nil
}

func (s *Server) handleServerInfo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobs, err := s.batch.Plan(s.validator.Root())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	template, err := s.inspector.Inspect(s.config.TemplatePath)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(s.formatServerInfo(jobs, template)), nil
}

// requirePath reads a required path argument and confines it to the input directory
func (s *Server) requirePath(request mcp.CallToolRequest, key string) (string, error) {
	path, err := request.RequireString(key)
	if err != nil {
		return "", err
	}
	return s.validator.Resolve(path)
}

// Formatting functions
func formatOutcome(outcome convert.Outcome) string {
	text := fmt.Sprintf("FDF created: %s\n", outcome.OutputPath)
	text += fmt.Sprintf("Input: %s\n", outcome.InputPath)
	text += fmt.Sprintf("Fields written: %d\n", outcome.FieldCount)
	text += fmt.Sprintf("Extended fields visited: %d\n", outcome.ExtendedCount)
	text += fmt.Sprintf("Namespace source: %s\n", outcome.NamespaceSource)

	if len(outcome.DateWarnings) > 0 {
		text += "\nDate format warnings:\n"
		for _, w := range outcome.DateWarnings {
			text += fmt.Sprintf("  %s: '%s'\n", w.Field, w.Value)
		}
	}

	return text
}

func formatReport(report *convert.Report) string {
	text := report.Summary()
	text += fmt.Sprintf("Run id: %s\n", report.RunID)

	if failures := report.Failures(); len(failures) > 0 {
		text += "\nFailures:\n"
		for _, o := range failures {
			text += fmt.Sprintf("  %s: %s\n", o.InputPath, o.Error)
		}
	}

	return text
}

func formatPreview(preview *convert.Preview) string {
	result := preview.Result

	text := fmt.Sprintf("Fields for: %s\n", preview.InputPath)
	text += fmt.Sprintf("Namespace source: %s\n", preview.NamespaceSource)
	text += fmt.Sprintf("Master elements found: %d\n", result.MasterCount)
	text += fmt.Sprintf("Extended fields visited: %d\n", result.ExtendedCount)
	text += fmt.Sprintf("Total fields: %d\n", len(result.Fields))

	if len(result.Fields) > 0 {
		text += "\nFields:\n"
		for i, field := range result.Fields {
			text += fmt.Sprintf("%d. %s = %s\n", i+1, field.Name, field.Value)
		}
	}

	if len(result.DateWarnings) > 0 {
		text += "\nDate format warnings:\n"
		for _, w := range result.DateWarnings {
			text += fmt.Sprintf("  %s: '%s'\n", w.Field, w.Value)
		}
	}

	return text
}

func (s *Server) formatServerInfo(jobs []convert.Job, template *pdftemplate.Report) string {
	text := fmt.Sprintf("📋 %s v%s - Server Information\n", s.config.ServerName, s.config.Version)
	text += fmt.Sprintf("📁 Input Directory: %s\n", s.validator.Root())
	text += fmt.Sprintf("📏 Max File Size: %d MB\n", s.config.MaxFileSize/(1024*1024))
	text += fmt.Sprintf("🗂️  Output Folder Suffix: '%s'\n\n", s.batch.Suffix())

	text += fmt.Sprintf("📄 Template: %s\n", template.Path)
	if template.Exists && template.Readable {
		text += fmt.Sprintf("   Pages: %d, AcroForm: %t\n", template.Pages, template.HasAcroForm)
	}
	for _, w := range template.Warnings {
		text += fmt.Sprintf("   ⚠️  %s\n", w)
	}
	text += "\n"

	if len(jobs) > 0 {
		text += fmt.Sprintf("📂 XML Files (%d found):\n", len(jobs))
		for i, job := range jobs {
			if i >= maxListedFiles {
				text += fmt.Sprintf("   ... and %d more files\n", len(jobs)-maxListedFiles)
				break
			}
			rel, err := filepath.Rel(s.validator.Root(), job.InputPath)
			if err != nil {
				rel = job.InputPath
			}
			text += fmt.Sprintf("   %d. %s\n", i+1, rel)
		}
		text += "\n"
	} else {
		text += "📂 XML Files: none found in the input directory\n\n"
	}

	text += "🛠️  Available Tools:\n"
	for _, tool := range descriptions.Tools {
		text += fmt.Sprintf("  • %s: %s\n", tool.Name, tool.Usage)
	}

	return strings.TrimRight(text, "\n") + "\n"
}

// Run serves the tools over stdio until the client disconnects
func (s *Server) Run(_ context.Context) error {
	s.logger.Info().
		Str("input_directory", s.validator.Root()).
		Str("template", s.config.TemplatePath).
		Msg("starting MCP server in stdio mode")

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("failed to serve stdio: %w", err)
	}
	return nil
}
