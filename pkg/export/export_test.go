package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTable() Table {
	return Table{
		Title: "Agenda Konsultasi",
		Columns: []Column{
			{Key: "start", Header: "Mulai"},
			{Key: "student", Header: "Mahasiswa"},
		},
		Rows: []map[string]string{
			{"start": "09:00", "student": "Budi Santoso"},
			{"start": "10:00", "student": "Ani Lestari"},
		},
	}
}

func TestCSVRendererRender(t *testing.T) {
	payload, err := NewCSVRenderer().Render(sampleTable())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Mulai,Mahasiswa", lines[0])
	assert.Equal(t, "09:00,Budi Santoso", lines[1])
}

func TestCSVRendererMissingKeyRendersEmpty(t *testing.T) {
	table := sampleTable()
	table.Rows = []map[string]string{{"start": "09:00"}}

	payload, err := NewCSVRenderer().Render(table)
	require.NoError(t, err)
	assert.Contains(t, string(payload), "09:00,\n")
}

func TestCSVRendererNoColumns(t *testing.T) {
	_, err := NewCSVRenderer().Render(Table{})
	assert.Error(t, err)
}

func TestPDFRendererRender(t *testing.T) {
	payload, err := NewPDFRenderer().Render(sampleTable())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestPDFRendererNoColumns(t *testing.T) {
	_, err := NewPDFRenderer().Render(Table{})
	assert.Error(t, err)
}
