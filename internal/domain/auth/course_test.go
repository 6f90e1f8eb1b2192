package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterCourses(t *testing.T) {
	in := []string{"CMPT-474", "student-member", "MATH100", "cmpt120-d1"}
	assert.Equal(t, []string{"CMPT-474", "MATH100", "cmpt120-d1"}, FilterCourses(in))
}

func TestIsCourse(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"CMPT-474", true},
		{"MATH100", true},
		{"cmpt120-d1", true},
		{"CMPT120-D100", true},
		{"CMPT-4740", false},
		{"CMPT-47", false},
		{"CMPT-474-d1", false},
		{"474", false},
		{"student-member", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsCourse(tt.in))
		})
	}
}

func TestFilterCourses_Empty(t *testing.T) {
	assert.Empty(t, FilterCourses(nil))
}

func TestRole_Valid(t *testing.T) {
	assert.True(t, RoleStudent.Valid())
	assert.True(t, RoleMentor.Valid())
	assert.False(t, Role("admin").Valid())
	assert.False(t, Role("").Valid())
}
