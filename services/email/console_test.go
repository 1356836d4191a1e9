package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/catechism/core"
	"github.com/trezcool/catechism/core/timetable"
	"github.com/trezcool/catechism/tests"
)

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	conf := &core.Config{AppName: "Catechism", DefaultFromEmail: mail.Address{Name: "Catechism", Address: "noreply@catechism.test"}}
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(logger, true /* strict */)
	svc := NewConsoleServiceMock(conf, logger)

	submitted := &core.EmailMessage{
		To:           []mail.Address{{Name: "Joe", Address: "joe@catechism.test"}},
		Subject:      "Timetable submitted",
		TemplateName: "timetable_submitted",
		TemplateData: map[string]interface{}{
			"SubmittedBy": "Joe",
			"GradeID":     3,
			"YearName":    "2026-2027",
			"Rows": []timetable.PreviewRow{
				{OrderSchedule: 1, Date: timetable.NewDate(2026, 9, 6), Title: "Creation", Exams: []string{"Quiz 1"}},
			},
		},
	}
	require.NoError(t, submitted.Attach(strings.NewReader("a,b\n1,2\n"), "timetable.csv", "text/csv"))
	noRecipient := &core.EmailMessage{Subject: "lost", BodyStr: "nobody will read this"}

	svc.SendMessages(submitted, noRecipient)

	sent := svc.SentMessages()
	if assert.Len(t, sent, 1) {
		assert.Contains(t, sent[0].TextContent, "Hello Joe")
		assert.Contains(t, sent[0].TextContent, "grade 3")
		assert.Contains(t, sent[0].TextContent, "[exam: Quiz 1]")
		assert.Contains(t, sent[0].HTMLContent, "Creation")
		assert.Len(t, sent[0].Attachments, 1)
	}

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}
