package timetable_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/volatiletech/null/v8"

	. "github.com/trezcool/catechism/core/timetable"
	"github.com/trezcool/catechism/tests"
)

func TestParsePreviewMode(t *testing.T) {
	tests := []struct {
		in      string
		want    PreviewMode
		wantErr bool
	}{
		{in: "", want: PreviewSeparate},
		{in: "separate", want: PreviewSeparate},
		{in: " Grouped ", want: PreviewGrouped},
		{in: "merged", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePreviewMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPreviewMode)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPreview(t *testing.T) {
	sessions := testutil.Sessions(101, firstSession, 4)
	sessions[3].Name = null.StringFrom("Closing")
	lessons := []Lesson{
		testutil.Lesson(1, "A", FullUnit),
		testutil.Lesson(2, "B", HalfUnit, "Quiz 1"),
		testutil.Lesson(3, "C", HalfUnit, "Quiz 2"),
	}
	results := []MappingResult{
		lessonResult(1, 1),
		lessonResult(2, 2),
		lessonResult(2, 3, "Games"),
		noteResult(3, "Field trip"),
		noteResult(4, " "),
	}
	date := func(i int) Date { return sessions[i].Date }

	tests := []struct {
		name    string
		results []MappingResult
		mode    PreviewMode
		want    []PreviewRow
	}{
		{
			name:    "separate",
			results: results,
			mode:    PreviewSeparate,
			want: []PreviewRow{
				{OrderSchedule: 1, Date: date(0), Title: "A", LessonIDs: []int{1}},
				{OrderSchedule: 2, Date: date(1), Title: "B", LessonIDs: []int{2}, Exams: []string{"Quiz 1"}},
				{OrderSchedule: 2, Date: date(1), Title: "C", LessonIDs: []int{3}, Exams: []string{"Quiz 2"}, Note: "Games"},
				{OrderSchedule: 3, Date: date(2), Title: "Field trip", LessonIDs: []int{}},
				{OrderSchedule: 4, Date: date(3), SessionName: "Closing", Title: OtherActivity, LessonIDs: []int{}},
			},
		},
		{
			name:    "grouped",
			results: results,
			mode:    PreviewGrouped,
			want: []PreviewRow{
				{OrderSchedule: 1, Date: date(0), Title: "A", LessonIDs: []int{1}},
				{OrderSchedule: 2, Date: date(1), Title: "B & C", LessonIDs: []int{2, 3}, Exams: []string{"Quiz 1", "Quiz 2"}, Note: "Games"},
				{OrderSchedule: 3, Date: date(2), Title: "Field trip", LessonIDs: []int{}},
				{OrderSchedule: 4, Date: date(3), SessionName: "Closing", Title: OtherActivity, LessonIDs: []int{}},
			},
		},
		{
			name:    "unknown lesson",
			results: []MappingResult{lessonResult(1, 42)},
			mode:    PreviewGrouped,
			want:    []PreviewRow{{OrderSchedule: 1, Date: date(0), Title: "Lesson #42", LessonIDs: []int{42}}},
		},
		{
			name: "empty",
			mode: PreviewSeparate,
			want: []PreviewRow{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Preview(tt.results, sessions, lessons, tt.mode))
		})
	}
}
