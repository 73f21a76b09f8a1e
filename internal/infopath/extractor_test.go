package infopath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aivaxela/Infopath-XML-To-FDF-PDF/internal/normalize"
)

const submissionXML = `<?xml version="1.0" encoding="UTF-8"?>
<dfs:myFields
    xmlns:dfs="http://schemas.microsoft.com/office/infopath/2003/dataFormSolution"
    xmlns:q="http://schemas.microsoft.com/office/infopath/2003/ado/queryFields"
    xmlns:d="http://schemas.microsoft.com/office/infopath/2003/ado/dataFields"
    xmlns:my="http://schemas.microsoft.com/office/infopath/2003/myXSD/2019-03-11T08:00:00"
    xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <dfs:queryFields>
    <q:MASTER_PART1 Name="Query Name" CaseNo="Q-1" Unused=""/>
  </dfs:queryFields>
  <dfs:dataFields>
    <d:MASTER_PART1 Name="Jane &amp; Co" DOB="1990-05-01" Blank="   "/>
  </dfs:dataFields>
  <my:Notes>Call back</my:Notes>
  <my:Signed xsi:nil="true">ignored</my:Signed>
  <my:Visit my:date="2024-01-05" my:by="Nurse" other="skipped">Scheduled</my:Visit>
  <my:Empty/>
</dfs:myFields>`

func extract(t *testing.T, raw string, opts Options) *ExtractionResult {
	t.Helper()

	doc, err := ParseDocument([]byte(raw))
	require.NoError(t, err)

	res := ResolveNamespaces([]byte(raw), NamespaceModeDynamic)
	result, err := NewExtractor(opts).Extract(doc, res.Map)
	require.NoError(t, err)
	return result
}

func fieldNames(fields []FieldRecord) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

func TestExtractor_Submission(t *testing.T) {
	result := extract(t, submissionXML, DefaultOptions())

	expected := []FieldRecord{
		{Name: "Name", Value: "Jane &amp; Co"},
		{Name: "DOB", Value: "05/01/90"},
		{Name: "Name_2", Value: "Query Name"},
		{Name: "CaseNo", Value: "Q-1"},
		{Name: "Notes", Value: "Call back"},
		{Name: "Visit_date", Value: "01/05/24"},
		{Name: "Visit_by", Value: "Nurse"},
		{Name: "Visit", Value: "Scheduled"},
	}

	assert.Equal(t, expected, result.Fields)
	assert.Equal(t, 2, result.MasterCount)
	assert.Equal(t, 6, result.ExtendedCount, "every container child is counted")
	assert.Empty(t, result.DateWarnings)
}

func TestExtractor_MasterPriority(t *testing.T) {
	opts := DefaultOptions()
	opts.MasterPriority = []string{PrefixQueryFields, PrefixDataFields}

	result := extract(t, submissionXML, opts)

	require.GreaterOrEqual(t, len(result.Fields), 4)
	assert.Equal(t, []string{"Name", "CaseNo", "Name_2", "DOB"}, fieldNames(result.Fields[:4]))
	assert.Equal(t, "Query Name", result.Fields[0].Value)
	assert.Equal(t, "Jane &amp; Co", result.Fields[2].Value)
}

func TestExtractor_CollisionNumbering(t *testing.T) {
	raw := `<root xmlns:d="urn:data">
  <d:MASTER_PART1 Name="first"/>
  <group><d:MASTER_PART1 Name="second" City="Akron"/></group>
  <d:MASTER_PART1 Name="third" City="Dayton"/>
</root>`

	result := extract(t, raw, DefaultOptions())

	assert.Equal(t, []FieldRecord{
		{Name: "Name", Value: "first"},
		{Name: "Name_2", Value: "second"},
		{Name: "City", Value: "Akron"},
		{Name: "Name_3", Value: "third"},
		{Name: "City_2", Value: "Dayton"},
	}, result.Fields)
}

func TestExtractor_CountersResetPerDocument(t *testing.T) {
	raw := `<root xmlns:d="urn:data"><d:MASTER_PART1 Name="only"/></root>`
	extractor := NewExtractor(DefaultOptions())

	for i := 0; i < 3; i++ {
		doc, err := ParseDocument([]byte(raw))
		require.NoError(t, err)

		result, err := extractor.Extract(doc, NamespaceMap{"d": "urn:data"})
		require.NoError(t, err)
		assert.Equal(t, []string{"Name"}, fieldNames(result.Fields), "run %d", i)
	}
}

func TestExtractor_DateWarnings(t *testing.T) {
	raw := `<root xmlns:d="urn:data"><d:MASTER_PART1 DOB="2024-02-30" Seen="2024-01-05"/></root>`

	result := extract(t, raw, DefaultOptions())

	assert.Equal(t, []FieldRecord{
		{Name: "DOB", Value: "2024-02-30"},
		{Name: "Seen", Value: "01/05/24"},
	}, result.Fields)
	assert.Equal(t, []DateWarning{{Field: "DOB", Value: "2024-02-30"}}, result.DateWarnings)
}

func TestExtractor_SkipsXSIAndBlankAttributes(t *testing.T) {
	raw := `<root xmlns:d="urn:data" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
  <d:MASTER_PART1 xsi:nil="false" Name="Ann" Middle="" Last=" "/>
</root>`

	result := extract(t, raw, DefaultOptions())
	assert.Equal(t, []FieldRecord{{Name: "Name", Value: "Ann"}}, result.Fields)
}

func TestExtractor_NestedContainer(t *testing.T) {
	raw := `<root xmlns:dfs="urn:dfs" xmlns:my="urn:my">
  <my:Outside>not in container</my:Outside>
  <wrapper>
    <dfs:myFields>
      <my:Inside>in container</my:Inside>
      <plain>no namespace</plain>
    </dfs:myFields>
  </wrapper>
</root>`

	result := extract(t, raw, DefaultOptions())

	assert.Equal(t, []FieldRecord{{Name: "Inside", Value: "in container"}}, result.Fields)
	assert.Equal(t, 2, result.ExtendedCount)
}

func TestExtractor_RootIsMaster(t *testing.T) {
	raw := `<d:MASTER_PART1 xmlns:d="urn:data" Name="Ann" DOB="1990-05-01">
  <d:MASTER_PART1 Name="Bob"/>
</d:MASTER_PART1>`

	result := extract(t, raw, DefaultOptions())

	assert.Equal(t, 2, result.MasterCount)
	assert.Equal(t, []FieldRecord{
		{Name: "Name", Value: "Ann"},
		{Name: "DOB", Value: "05/01/90"},
		{Name: "Name_2", Value: "Bob"},
	}, result.Fields)
}

func TestExtractor_ExtendedAttributePolicy(t *testing.T) {
	raw := `<my:myFields xmlns:my="urn:my"><my:Item my:note="A &amp; B" my:due="2024-01-05"/></my:myFields>`

	normalized := extract(t, raw, DefaultOptions())
	assert.Equal(t, []FieldRecord{
		{Name: "Item_note", Value: "A &amp; B"},
		{Name: "Item_due", Value: "01/05/24"},
	}, normalized.Fields)

	opts := DefaultOptions()
	opts.ExtendedAttributes = AttributeRaw
	raw2 := extract(t, raw, opts)
	assert.Equal(t, []FieldRecord{
		{Name: "Item_note", Value: "A & B"},
		{Name: "Item_due", Value: "2024-01-05"},
	}, raw2.Fields)
}

func TestExtractor_ExtendedNamesUseOwnCounter(t *testing.T) {
	raw := `<my:myFields xmlns:my="urn:my" xmlns:d="urn:data">
  <d:MASTER_PART1 Phone="555-0100"/>
  <my:Phone>555-0199</my:Phone>
  <my:Phone>555-0142</my:Phone>
</my:myFields>`

	result := extract(t, raw, DefaultOptions())

	assert.Equal(t, []FieldRecord{
		{Name: "Phone", Value: "555-0100"},
		{Name: "Phone", Value: "555-0199"},
		{Name: "Phone_2", Value: "555-0142"},
	}, result.Fields)
}

func TestExtractor_StrategySelection(t *testing.T) {
	opts := DefaultOptions()
	opts.Strategies = []Strategy{StrategyExtendedFields}

	result := extract(t, submissionXML, opts)

	assert.Equal(t, []string{"Notes", "Visit_date", "Visit_by", "Visit"}, fieldNames(result.Fields))
	assert.Zero(t, result.MasterCount)
}

func TestExtractor_StrictEncodingFails(t *testing.T) {
	raw := `<root xmlns:d="urn:data"><d:MASTER_PART1 Symbol="☃"/></root>`

	doc, err := ParseDocument([]byte(raw))
	require.NoError(t, err)

	opts := DefaultOptions()
	opts.Pipeline = normalize.NewPipeline(normalize.EncodingStrict, "")

	_, err = NewExtractor(opts).Extract(doc, NamespaceMap{"d": "urn:data"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Symbol")

	var encErr *normalize.EncodingError
	assert.ErrorAs(t, err, &encErr)
}

func TestExtractor_NoMatchingNamespaces(t *testing.T) {
	doc, err := ParseDocument([]byte(submissionXML))
	require.NoError(t, err)

	result, err := NewExtractor(DefaultOptions()).Extract(doc, NamespaceMap{"x": "urn:none"})
	require.NoError(t, err)
	assert.Empty(t, result.Fields)
}

func TestExtractor_NilDocument(t *testing.T) {
	_, err := NewExtractor(Options{}).Extract(nil, StaticNamespaces())
	assert.Error(t, err)
}

func TestNewExtractor_Defaults(t *testing.T) {
	opts := NewExtractor(Options{}).Options()

	assert.Equal(t, DefaultMasterElement, opts.MasterElement)
	assert.Equal(t, DefaultContainerElement, opts.ContainerElement)
	assert.Equal(t, PrefixDataFormSolution, opts.ContainerPrefix)
	assert.Equal(t, PrefixMyFields, opts.DataPrefix)
	assert.Equal(t, AttributeNormalize, opts.ExtendedAttributes)
	assert.Equal(t, []Strategy{StrategyMasterAttributes, StrategyExtendedFields}, opts.Strategies)
}

func TestFieldCounter_Next(t *testing.T) {
	c := NewFieldCounter()

	assert.Equal(t, "Name", c.Next("Name"))
	assert.Equal(t, "City", c.Next("City"))
	assert.Equal(t, "Name_2", c.Next("Name"))
	assert.Equal(t, "Name_3", c.Next("Name"))
	assert.Equal(t, "City_2", c.Next("City"))
}

func TestStrategy_String(t *testing.T) {
	assert.Equal(t, "master_attributes", StrategyMasterAttributes.String())
	assert.Equal(t, "extended_fields", StrategyExtendedFields.String())
	assert.Equal(t, "unknown", Strategy(42).String())
}
