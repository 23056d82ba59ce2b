package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestChannelOf(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{"Online Transaction", ChannelOnline},
		{"ONLINE", ChannelOnline},
		{"Swipe Transaction", ChannelInStore},
		{"  swipe", ChannelInStore},
		{"Chip Transaction", ChannelInStore},
		{"", ChannelOther},
		{"wire", ChannelOther},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ChannelOf(tt.method), tt.method)
	}
}

func TestAgeGroup(t *testing.T) {
	assert.Equal(t, "30-39", AgeGroup(34))
	assert.Equal(t, "20-29", AgeGroup(20))
	assert.Equal(t, "0-9", AgeGroup(-3))
	assert.Equal(t, "100-109", AgeGroup(101))
}

func TestTransaction_IsOnline(t *testing.T) {
	online := "ONLINE"
	city := "Austin"

	assert.True(t, Transaction{StateName: OnlineState}.IsOnline())
	assert.True(t, Transaction{StateName: "Texas", MerchantCity: &online}.IsOnline())
	assert.False(t, Transaction{StateName: "Texas", MerchantCity: &city}.IsOnline())
}

func TestTransaction_HourAndError(t *testing.T) {
	empty := ""
	bad := "Bad PIN"
	tx := Transaction{Date: time.Date(2019, 3, 1, 14, 5, 0, 0, time.UTC)}
	assert.Equal(t, 14, tx.Hour())
	assert.False(t, tx.HasError())

	tx.Errors = &empty
	assert.False(t, tx.HasError())
	tx.Errors = &bad
	assert.True(t, tx.HasError())
}

func TestProfiledTransaction_Labels(t *testing.T) {
	var p ProfiledTransaction
	assert.Equal(t, "Unknown", p.GenderLabel())
	assert.Equal(t, "Unknown", p.AgeLabel())
	assert.Equal(t, "", p.Group())

	g, age, grp := "Female", int32(47), "Grocery"
	p = ProfiledTransaction{Gender: &g, CurrentAge: &age, MerchantGroup: &grp}
	assert.Equal(t, "Female", p.GenderLabel())
	assert.Equal(t, "40-49", p.AgeLabel())
	assert.Equal(t, "Grocery", p.Group())
}
