package seed

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/roach88/offset/internal/credit"
	"github.com/roach88/offset/internal/engine"
	"github.com/roach88/offset/internal/store"
)

const sampleJSON = `[
  {"project_name": "Wind Farm", "registry": "Verra", "vintage": 2024, "quantity": 500.0, "serial_number": "VCS-WIND-001"},
  {"project_name": "Solar Farm Project", "registry": "Gold Standard", "vintage": 2023, "quantity": "1000", "serial_number": "GS-SOLAR-2023-001"},
  {"project_name": "WIND FARM ", "registry": "verra", "vintage": "2024", "quantity": 500, "serial_number": "vcs-wind-001"}
]`

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]Format{
		"a.json": FormatJSON,
		"a.YAML": FormatYAML,
		"a.yml":  FormatYAML,
		"a.csv":  FormatCSV,
		"a.xlsx": FormatXLSX,
	} {
		got, err := FormatFromPath(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatFromPath("a.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecodeJSON_KeepsNumbersExact(t *testing.T) {
	items, err := Decode([]byte(`[{"quantity": 1000.123456789012345678}]`), FormatJSON)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, json.Number("1000.123456789012345678"), items[0].Raw["quantity"])
	assert.Equal(t, 1, items[0].Position)
}

func TestDecodeYAML_KeepsNumbersExact(t *testing.T) {
	items, err := Decode([]byte(`
- quantity: 12345678901234.56789
  vintage: 0x7E8
  big: 18446744073709551616
`), FormatYAML)
	require.NoError(t, err)
	require.Len(t, items, 1)

	raw := items[0].Raw
	assert.Equal(t, json.Number("12345678901234.56789"), raw["quantity"])
	assert.Equal(t, json.Number("2024"), raw["vintage"])
	assert.Equal(t, json.Number("18446744073709551616"), raw["big"])
}

func TestDecode_YAMLAndJSONShareRecordID(t *testing.T) {
	jsonItems, err := Decode([]byte(`[{"project_name": "Wind Farm", "registry": "Verra", "vintage": 2024,
		"quantity": 12345678901234.56789, "serial_number": "VCS-WIND-001"}]`), FormatJSON)
	require.NoError(t, err)
	yamlItems, err := Decode([]byte(`
- project_name: Wind Farm
  registry: Verra
  vintage: 2024
  quantity: 12345678901234.56789
  serial_number: VCS-WIND-001
`), FormatYAML)
	require.NoError(t, err)

	jc, jsonID, err := credit.IdentifyRaw(jsonItems[0].Raw)
	require.NoError(t, err)
	yc, yamlID, err := credit.IdentifyRaw(yamlItems[0].Raw)
	require.NoError(t, err)

	assert.Equal(t, "12345678901234.5678", jc.Quantity)
	assert.Equal(t, jc, yc)
	assert.Equal(t, jsonID, yamlID)
}

func TestDecodeYAML_NullAndNonMappingItems(t *testing.T) {
	items, err := Decode([]byte("- ~\n- {quantity: 1}\n"), FormatYAML)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Empty(t, items[0].Raw)

	_, err = Decode([]byte("- [1, 2]\n"), FormatYAML)
	assert.Error(t, err)
}

func TestDecodeJSON_StripsBOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte(sampleJSON)...)
	items, err := Decode(data, FormatJSON)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestDecodeJSON_RejectsObject(t *testing.T) {
	_, err := Decode([]byte(`{"project_name": "x"}`), FormatJSON)
	assert.Error(t, err)
}

func TestDecodeYAML(t *testing.T) {
	data := []byte(`
- project_name: Wind Farm
  registry: Verra
  vintage: 2024
  quantity: 500.5
  serial_number: VCS-WIND-001
- project_name: Solar
  registry: Gold Standard
  vintage: "2023"
  quantity: "12"
  serial_number: GS-1
`)
	items, err := Decode(data, FormatYAML)
	require.NoError(t, err)
	require.Len(t, items, 2)

	c, err := credit.Canonicalize(items[0].Raw)
	require.NoError(t, err)
	assert.Equal(t, "500.5000", c.Quantity)
	assert.Equal(t, int64(2024), c.Vintage)
	assert.Equal(t, 2, items[1].Position)
}

func TestDecodeCSV(t *testing.T) {
	data := []byte("Project Name,Registry,Vintage,Quantity,Serial-Number\n" +
		"Wind Farm, Verra,2024,500.00007,VCS-WIND-001\n" +
		",,,,\n" +
		"Solar,Gold Standard,2023,1000\n")

	items, err := Decode(data, FormatCSV)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, 2, items[0].Position, "position is the sheet row")
	assert.Equal(t, 4, items[1].Position, "blank rows still count")
	assert.Equal(t, "Verra", items[0].Raw[credit.FieldRegistry])
	assert.Equal(t, "VCS-WIND-001", items[0].Raw[credit.FieldSerialNumber])
	_, hasSerial := items[1].Raw[credit.FieldSerialNumber]
	assert.False(t, hasSerial, "short rows leave trailing fields absent")
}

func TestDecodeCSV_NoHeader(t *testing.T) {
	_, err := Decode([]byte("\n\n"), FormatCSV)
	assert.Error(t, err)
}

func TestDecodeXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"project_name", "registry", "vintage", "quantity", "serial_number"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"Wind Farm", "Verra", 2024, "500", "VCS-WIND-001"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	items, err := Decode(buf.Bytes(), FormatXLSX)
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, id, err := credit.IdentifyRaw(items[0].Raw)
	require.NoError(t, err)
	assert.Equal(t, "4a8c759aaa122f9d7c4e3bad88f4841ed8baf5b47867176d36a5a6906c775c45", id)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample-registry.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))

	items, err := ReadFile(path)
	require.NoError(t, err)
	assert.Len(t, items, 3)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestValidator(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	items, err := Decode([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)
	for _, item := range items {
		assert.NoError(t, v.Validate(item), "item %d", item.Position)
	}

	bad := []credit.RawRecord{
		{"registry": "Verra", "vintage": 2024, "quantity": "1", "serial_number": "s"},
		{"project_name": "x", "registry": "Verra", "vintage": "twenty", "quantity": "1", "serial_number": "s"},
		{"project_name": "x", "registry": "Verra", "vintage": 2024, "quantity": -1, "serial_number": "s"},
		{"project_name": "  ", "registry": "Verra", "vintage": 2024, "quantity": "1", "serial_number": "s"},
		{"project_name": "x", "registry": nil, "vintage": 2024, "quantity": "1", "serial_number": "s"},
	}
	for i, raw := range bad {
		assert.Error(t, v.Validate(Item{Position: i + 1, Raw: raw}), "bad item %d", i+1)
	}

	extra := credit.RawRecord{
		"project_name": "x", "registry": "Verra", "vintage": 2024,
		"quantity": "1", "serial_number": "s", "note": "extra fields are allowed",
	}
	assert.NoError(t, v.Validate(Item{Position: 1, Raw: extra}))
}

func TestLoad_CountsOutcomes(t *testing.T) {
	e := engine.New(store.NewMemory())
	items, err := Decode([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)

	conflict := credit.RawRecord{
		"project_name": "a|b", "registry": "c", "vintage": 2024, "quantity": "1", "serial_number": "s",
	}
	collide := credit.RawRecord{
		"project_name": "a", "registry": "b|c", "vintage": 2024, "quantity": "1", "serial_number": "s",
	}
	items = append(items,
		Item{Position: 4, Raw: credit.RawRecord{"project_name": "missing fields"}},
		Item{Position: 5, Raw: conflict},
	)

	loader := NewLoader(e, 1, nil)
	report, err := loader.Load(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 5, report.Total)
	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 1, report.Invalid)
	assert.True(t, report.Failed())
	assert.Equal(t, StatusSkipped, report.Results[2].Status)
	assert.Equal(t, report.Results[0].RecordID, report.Results[2].RecordID)

	// Second pass over a colliding record is a conflict; everything else skips.
	report, err = loader.Load(context.Background(), []Item{{Position: 1, Raw: collide}, items[0]})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Conflicts)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, StatusConflict, report.Results[0].Status)
	assert.True(t, credit.IsDataConflict(report.Results[0].Err))
}

func TestLoad_Idempotent(t *testing.T) {
	e := engine.New(store.NewMemory())
	items, err := Decode([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)

	loader := NewLoader(e, 8, nil)
	_, err = loader.Load(context.Background(), items)
	require.NoError(t, err)

	report, err := loader.Load(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 3, report.Skipped)
	assert.False(t, report.Failed())

	hs, err := e.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, hs, 2)
	for _, h := range hs {
		assert.Len(t, h.Events, 1)
	}
}

type failingCreator struct{ err error }

func (f failingCreator) CreateOrReconcile(context.Context, credit.RawRecord) (engine.Result, error) {
	return engine.Result{}, f.err
}

func TestLoad_StorageErrorsJoined(t *testing.T) {
	boom := errors.New("database is gone")
	loader := NewLoader(failingCreator{err: boom}, 2, nil)

	items, err := Decode([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)

	report, err := loader.Load(context.Background(), items)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, report.Errors)
}

func TestLoad_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := NewLoader(engine.New(store.NewMemory()), 2, nil)
	items, err := Decode([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)

	report, err := loader.Load(ctx, items)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, report.Errors)
}

func TestCheck(t *testing.T) {
	items, err := Decode([]byte(sampleJSON), FormatJSON)
	require.NoError(t, err)
	items = append(items,
		Item{Position: 4, Raw: credit.RawRecord{"project_name": "x"}},
		Item{Position: 5, Raw: credit.RawRecord{
			"project_name": "x", "registry": "y", "vintage": 2024, "quantity": "1e30", "serial_number": "z",
		}},
	)

	report, err := Check(items)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Created)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, 2, report.Invalid, "schema failure and canonicalization failure")
	assert.True(t, credit.IsInvalidInput(report.Results[3].Err))
}
