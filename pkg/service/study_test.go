package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/studyhub/studyfeed/pkg/backend"
	clierrors "github.com/studyhub/studyfeed/pkg/errors"
)

var pdfHeader = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\n")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newStudy(t *testing.T) (*testEnv, *StudyService, *fakeClock) {
	t.Helper()
	env := newTestEnv(t)
	clock := &fakeClock{t: testEpoch}
	svc := NewStudyService(env.local, env.gw)
	svc.now = clock.now
	return env, svc, clock
}

func TestStudyStreak(t *testing.T) {
	_, svc, clock := newStudy(t)

	p, err := svc.LogSession(30, "Cell biology")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Streak)
	assert.Equal(t, 30, p.TotalStudyTime)

	clock.advance(3 * time.Hour)
	p, err = svc.LogSession(15, "")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Streak, "same day keeps the streak")
	assert.Equal(t, 45, p.TotalStudyTime)

	clock.advance(24 * time.Hour)
	p, err = svc.LogSession(20, "")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Streak, "next day extends")

	clock.advance(72 * time.Hour)
	p, err = svc.LogSession(5, "")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Streak, "a gap restarts")

	_, err = svc.LogSession(-1, "")
	assert.True(t, clierrors.IsValidation(err))
}

func TestStudySessionTiming(t *testing.T) {
	_, svc, clock := newStudy(t)

	require.NoError(t, svc.StartSession("Optics"))
	assert.ErrorIs(t, svc.StartSession("again"), ErrBusy)
	topic, _, ok := svc.ActiveSession()
	assert.True(t, ok)
	assert.Equal(t, "Optics", topic)

	clock.advance(25*time.Minute + 40*time.Second)
	minutes, err := svc.EndSession()
	require.NoError(t, err)
	assert.Equal(t, 25, minutes)

	_, err = svc.EndSession()
	assert.True(t, clierrors.IsValidation(err))

	p, err := svc.Progress()
	require.NoError(t, err)
	assert.Equal(t, 25, p.TotalStudyTime)
}

func TestStudyStatisticsAndTopics(t *testing.T) {
	_, svc, clock := newStudy(t)

	stats, err := svc.Statistics()
	require.NoError(t, err)
	assert.Zero(t, stats.AveragePerDay)

	_, err = svc.LogSession(50, "")
	require.NoError(t, err)
	clock.advance(24 * time.Hour)
	_, err = svc.LogSession(25, "")
	require.NoError(t, err)

	_, err = svc.MarkTopicCompleted("Thermodynamics")
	require.NoError(t, err)
	p, err := svc.MarkTopicCompleted(" Thermodynamics ")
	require.NoError(t, err)
	assert.Equal(t, []string{"Thermodynamics"}, p.CompletedTopics)

	stats, err = svc.Statistics()
	require.NoError(t, err)
	assert.Equal(t, 75, stats.TotalMinutes)
	assert.Equal(t, 2, stats.Streak)
	assert.Equal(t, 1, stats.CompletedTopics)
	assert.Equal(t, float64(37), stats.AveragePerDay)
}

func TestStudyReminderAndGoal(t *testing.T) {
	_, svc, clock := newStudy(t)

	msg, err := svc.Reminder()
	require.NoError(t, err)
	assert.Equal(t, StudyReminder, msg)

	_, err = svc.LogSession(10, "")
	require.NoError(t, err)
	msg, err = svc.Reminder()
	require.NoError(t, err)
	assert.Empty(t, msg)

	clock.advance(24 * time.Hour)
	msg, _ = svc.Reminder()
	assert.Equal(t, StudyReminder, msg)

	g, err := svc.Goal()
	require.NoError(t, err)
	assert.Nil(t, g)
	_, err = svc.SetGoal(0)
	assert.True(t, clierrors.IsValidation(err))
	_, err = svc.SetGoal(45)
	require.NoError(t, err)
	g, err = svc.Goal()
	require.NoError(t, err)
	assert.Equal(t, 45, g.MinutesPerDay)
}

func TestStudyActivityCap(t *testing.T) {
	_, svc, _ := newStudy(t)
	for i := 0; i < maxStudyActivity+5; i++ {
		require.NoError(t, svc.TrackActivity("note_view", fmt.Sprint(i)))
	}
	acts, err := svc.Activities()
	require.NoError(t, err)
	require.Len(t, acts, maxStudyActivity)
	assert.Equal(t, "5", acts[0].Detail)
	assert.Equal(t, fmt.Sprint(maxStudyActivity+4), acts[len(acts)-1].Detail)
}

func TestStudyNotes(t *testing.T) {
	ctx := context.Background()
	env, svc, _ := newStudy(t)
	dir := t.TempDir()

	pdf := filepath.Join(dir, "kinematics.pdf")
	require.NoError(t, os.WriteFile(pdf, pdfHeader, 0644))
	png := filepath.Join(dir, "chart.png")
	require.NoError(t, os.WriteFile(png, pngHeader, 0644))

	_, err := svc.UploadNote(ctx, png, "Chart", "physics")
	assert.True(t, clierrors.IsValidation(err))
	_, err = svc.UploadNote(ctx, pdf, " ", "physics")
	assert.True(t, clierrors.IsValidation(err))

	id, err := svc.UploadNote(ctx, pdf, "Kinematics summary", "physics")
	require.NoError(t, err)
	data := env.doc(t, backend.CollectionNotes, id)
	assert.Contains(t, data["fileUrl"], "notes/physics/")
	assert.Equal(t, "u1", data["uploadedBy"])

	require.NoError(t, env.store.Set(ctx, backend.CollectionNotes, "n2", backend.Fields{
		"title": "Organic reactions", "category": "chemistry", "uploadedAt": testEpoch,
	}))

	physics, err := svc.Notes(ctx, "physics")
	require.NoError(t, err)
	require.Len(t, physics, 1)
	assert.Equal(t, "Kinematics summary", physics[0].Title)

	found, err := svc.SearchNotes(ctx, "ORGANIC")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "n2", found[0].ID)

	note, err := svc.DownloadNote(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "physics", note.Category)
	assert.EqualValues(t, 1, env.doc(t, backend.CollectionNotes, id)["downloads"])

	downloads, err := svc.Downloads()
	require.NoError(t, err)
	require.Len(t, downloads, 1)
	assert.Equal(t, "Kinematics summary", downloads[0].Title)

	insights, err := svc.Insights()
	require.NoError(t, err)
	assert.Equal(t, "physics", insights.FavoriteCategory)
	assert.NotEmpty(t, insights.MostStudiedTime)

	_, err = svc.DownloadNote(ctx, "missing")
	assert.True(t, clierrors.IsType(err, clierrors.ErrorTypeNotFound))
}

func TestStudyExport(t *testing.T) {
	_, svc, _ := newStudy(t)
	_, err := svc.LogSession(40, "Genetics")
	require.NoError(t, err)
	_, err = svc.SetGoal(30)
	require.NoError(t, err)

	raw, err := svc.Export()
	require.NoError(t, err)

	var out StudyExport
	require.NoError(t, jsoniter.Unmarshal(raw, &out))
	assert.Equal(t, 40, out.Progress.TotalStudyTime)
	assert.Equal(t, 40, out.Statistics.TotalMinutes)
	require.NotNil(t, out.Goal)
	assert.Equal(t, 30, out.Goal.MinutesPerDay)
	require.Len(t, out.Activities, 1)
	assert.Equal(t, "Genetics: 40 min", out.Activities[0].Detail)
}
