package descriptions

// Tool descriptions with examples, shared by tool registration and fdf_server_info

const (
	ConvertFileDescription = `Convert one InfoPath XML form submission into an FDF file that fills the configured PDF template.

**When to use:** A single submission needs to be turned into a fillable-form data file, or a failed file from a batch needs to be retried.

**Why it's useful:** Reads the master record attributes and the extended fields of the form, normalizes dates to MM/DD/YY and writes a Latin-1 FDF file that a PDF reader merges into the template.

**Examples:**
• Convert one submission: "Convert 2024/smith-john.xml"
• Retry after fixing a file: "Convert 2024/broken.xml again now that the XML is repaired"
• Custom destination: "Convert 2024/a.xml and write it to review/a.fdf"

**Best practices:** Use xml_extract_fields first when a form is unfamiliar. Output defaults to the sibling '<folder> - CONVERTED' directory.`

	ConvertDirectoryDescription = `Convert every XML file below a directory, folder by folder, and report the conversion summary.

**When to use:** A folder of submissions (possibly with year or office subfolders) needs converting in one pass.

**Why it's useful:** Walks the tree recursively, matches .xml in any case, writes each folder's output into its own '- CONVERTED' sibling and keeps going when one file fails.

**Examples:**
• Whole input directory: "Convert all forms"
• One subfolder: "Convert everything in 2024/March"

**Common workflows:**
1. Bulk conversion: fdf_server_info → xml_to_fdf_convert_directory → review failures
2. Cleanup: convert directory → inspect failed files with xml_namespaces → convert file again

**Best practices:** Output folders are skipped during the walk, so re-running is safe and overwrites earlier FDF files.`

	ExtractFieldsDescription = `Preview the FDF fields an XML file would produce without writing anything.

**When to use:** Checking what a form contains, or why a value in the filled PDF looks wrong.

**Why it's useful:** Shows the final field names (duplicates get _2, _3 suffixes), normalized values and any date values that could not be parsed.

**Examples:**
• Inspect a submission: "Which fields does 2024/smith-john.xml contain?"
• Debug a date: "Why is the date of birth blank in the PDF for jones.xml?"`

	NamespacesDescription = `Show the namespace prefixes declared by an XML file and the order in which they are searched for the master record.

**When to use:** A form converts without master fields, or was produced by a different InfoPath template version.

**Why it's useful:** Reports whether the map was scanned from the file or fell back to the built-in InfoPath table.`

	ServerInfoDescription = `Get server information, the configured template status, the XML files waiting in the input directory and the available tools.

**When to use:** Start here to learn the input directory, output folder suffix and whether the PDF template is present and fillable.`
)

// Tool is a registered tool with its one-line usage
type Tool struct {
	Name        string
	Description string
	Usage       string
}

// Tools lists the tools in registration order
var Tools = []Tool{
	{Name: "xml_to_fdf_convert_file", Description: ConvertFileDescription, Usage: "convert one XML file (path, optional output)"},
	{Name: "xml_to_fdf_convert_directory", Description: ConvertDirectoryDescription, Usage: "convert a folder tree (optional directory)"},
	{Name: "xml_extract_fields", Description: ExtractFieldsDescription, Usage: "preview the fields of one XML file (path)"},
	{Name: "xml_namespaces", Description: NamespacesDescription, Usage: "show resolved namespaces for one XML file (path)"},
	{Name: "fdf_server_info", Description: ServerInfoDescription, Usage: "this overview"},
}

// GetToolDescription returns the description for a tool
func GetToolDescription(toolName string) string {
	for _, tool := range Tools {
		if tool.Name == toolName {
			return tool.Description
		}
	}
	return "Tool description not available"
}

// GetAllToolNames returns the tool names in registration order
func GetAllToolNames() []string {
	names := make([]string, 0, len(Tools))
	for _, tool := range Tools {
		names = append(names, tool.Name)
	}
	return names
}
