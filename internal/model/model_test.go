package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCountry(t *testing.T) {
	tests := []struct {
		in   string
		want Country
	}{
		{"Benin", Benin},
		{"benin", Benin},
		{"Sierra Leone", SierraLeone},
		{"sierra_leone", SierraLeone},
		{"SIERRA-LEONE", SierraLeone},
		{" togo ", Togo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCountry(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseCountry("Ghana")
	assert.Error(t, err)
}

func TestValueDistinguishesZeroFromMissing(t *testing.T) {
	zero := Some(0)
	assert.True(t, zero.Valid)
	assert.False(t, Missing().Valid)
	assert.Equal(t, "NA", Missing().String())
	assert.Equal(t, "0", zero.String())
}

func TestNewDatasetValidatesShape(t *testing.T) {
	_, err := NewDataset(Benin, "x.csv", []string{"GHI", "DNI"}, []Reading{{ID: 0, Values: []Value{Some(1)}}})
	require.Error(t, err)

	_, err = NewDataset(Benin, "x.csv", []string{"GHI", "ghi"}, nil)
	require.Error(t, err)

	_, err = NewDataset("", "x.csv", []string{"GHI"}, nil)
	require.Error(t, err)
}

func TestDatasetColumnLookup(t *testing.T) {
	ds, err := NewDataset(Togo, "togo.csv", []string{"GHI", "temperature"}, []Reading{
		{ID: 0, Values: []Value{Some(10), Some(25)}},
		{ID: 1, Values: []Value{Missing(), Some(26)}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"GHI", "Tamb"}, ds.Columns)

	temps, err := ds.Column("temp")
	require.NoError(t, err)
	assert.Equal(t, []Value{Some(25), Some(26)}, temps)

	_, err = ds.Column("RH")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidColumn))
	var ce *ColumnError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "RH", ce.Column)
	assert.Contains(t, err.Error(), "available: GHI, Tamb")
}

func TestDatasetCloneIsIndependent(t *testing.T) {
	ds, err := NewDataset(Benin, "b.csv", []string{"GHI"}, []Reading{{ID: 0, Values: []Value{Some(5)}}})
	require.NoError(t, err)
	cp := ds.Clone()
	cp.Readings[0].Values[0] = Missing()
	assert.True(t, ds.Readings[0].Values[0].Valid)
	_, err = cp.ColumnIndex("ghi")
	assert.NoError(t, err)
}
