package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YoshitsuguKoike/procrunner/internal/domain/model/division"
)

func TestRegistry_Lookup(t *testing.T) {
	reg := NewRegistry()

	p, err := reg.Lookup("v1")
	require.NoError(t, err)
	assert.IsType(t, JSONParser{}, p)

	_, err = reg.Lookup("v9")
	assert.ErrorIs(t, err, ErrUnknownVersion)
	assert.Contains(t, err.Error(), "v1, v2")

	reg.Register("v9", CSVParser{})
	_, err = reg.Lookup("v9")
	assert.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2", "v9"}, reg.Versions())
}

func TestJSONParser(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []division.Division
		wantErr bool
	}{
		{
			name:  "normalises records",
			input: `[{"code":" ua ","name":"Ukraine","level":"country"},{"code":"UA-46","name":"Lviv   Oblast","parent_code":"ua","level":"region"}]`,
			want: []division.Division{
				{Code: "UA", Name: "Ukraine", Level: division.LevelCountry},
				{Code: "UA-46", Name: "Lviv Oblast", ParentCode: "UA", Level: division.LevelRegion},
			},
		},
		{
			name:  "empty array",
			input: `[]`,
			want:  []division.Division{},
		},
		{
			name:    "not an array",
			input:   `{"code":"UA"}`,
			wantErr: true,
		},
		{
			name:    "record without name",
			input:   `[{"code":"UA"}]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JSONParser{}.Parse([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCSVParser(t *testing.T) {
	input := "\xef\xbb\xbfname,code,level,parent_code\n" +
		"Ukraine,UA,COUNTRY,\n" +
		"\"Lviv Oblast\", UA-46,REGION,UA\n"

	got, err := CSVParser{}.Parse([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, []division.Division{
		{Code: "UA", Name: "Ukraine", Level: division.LevelCountry},
		{Code: "UA-46", Name: "Lviv Oblast", ParentCode: "UA", Level: division.LevelRegion},
	}, got)

	_, err = CSVParser{}.Parse([]byte("label,level\nx,y\n"))
	assert.ErrorContains(t, err, `missing column "code"`)

	_, err = CSVParser{}.Parse([]byte("code,name\nUA,\n"))
	assert.ErrorContains(t, err, "line 2")

	empty, err := CSVParser{}.Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
