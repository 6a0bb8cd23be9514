package services

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammadjaf013/findlanqbot/internal/providers/embedding"
	"github.com/mohammadjaf013/findlanqbot/internal/utils"
)

func TestIngest_UnchangedContentIsSkipped(t *testing.T) {
	ctx := context.Background()
	f := newFixture(newVocabEmbedder(), IngestOptions{})

	first, err := f.ingest.IngestText(ctx, "finland.txt", finlandDoc)
	require.NoError(t, err)
	assert.Equal(t, IngestStatusIngested, first.Status)

	again, err := f.ingest.IngestText(ctx, "finland.txt", finlandDoc)
	require.NoError(t, err)
	assert.Equal(t, IngestStatusSkipped, again.Status)
	assert.Equal(t, "unchanged", again.Reason)
	assert.Equal(t, first.FileHash, again.FileHash)
	assert.Equal(t, 2, again.Chunks)
}

func TestIngest_ReplacesPreviousChunks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(newVocabEmbedder(), IngestOptions{})

	_, err := f.ingest.IngestText(ctx, "finland.txt", finlandDoc)
	require.NoError(t, err)
	res, err := f.ingest.IngestText(ctx, "finland.txt", "Helsinki is the capital of Finland.")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Chunks)

	all, err := f.store.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Helsinki is the capital of Finland.", all[0].Text)
}

func TestIngest_EmptyTextIsSkipped(t *testing.T) {
	f := newFixture(newVocabEmbedder(), IngestOptions{})

	res, err := f.ingest.IngestText(context.Background(), "empty.txt", " \n\x00 ")
	require.NoError(t, err)
	assert.Equal(t, IngestStatusSkipped, res.Status)
	assert.Equal(t, "nothing to ingest", res.Reason)

	files, err := f.ingest.ListFiles(context.Background())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestIngest_FileNameIsRequired(t *testing.T) {
	f := newFixture(newVocabEmbedder(), IngestOptions{})

	_, err := f.ingest.IngestText(context.Background(), "  ", "text")
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
}

func TestIngest_ProviderOutageDegrades(t *testing.T) {
	emb := newVocabEmbedder()
	emb.fail = true
	f := newFixture(emb, IngestOptions{})

	res, err := f.ingest.IngestText(context.Background(), "finland.txt", finlandDoc)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, 2, res.Chunks)
}

func TestIngest_DegradedFileIsReembeddedOnceProviderRecovers(t *testing.T) {
	ctx := context.Background()
	emb := newVocabEmbedder()
	emb.fail = true
	f := newFixture(emb, IngestOptions{})

	first, err := f.ingest.IngestText(ctx, "finland.txt", finlandDoc)
	require.NoError(t, err)
	require.True(t, first.Degraded)

	rec, err := f.store.GetFile(ctx, "finland.txt")
	require.NoError(t, err)
	assert.True(t, rec.Degraded)

	emb.fail = false
	again, err := f.ingest.IngestText(ctx, "finland.txt", finlandDoc)
	require.NoError(t, err)
	assert.Equal(t, IngestStatusIngested, again.Status)
	assert.False(t, again.Degraded)
	assert.Equal(t, first.FileHash, again.FileHash)

	rec, err = f.store.GetFile(ctx, "finland.txt")
	require.NoError(t, err)
	assert.False(t, rec.Degraded)

	hash := embedding.NewHashEmbedder(testDim)
	all, err := f.store.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, c := range all {
		assert.NotEqual(t, hash.Vector(c.Text), c.Embedding)
	}

	// a clean file is skipped as before
	third, err := f.ingest.IngestText(ctx, "finland.txt", finlandDoc)
	require.NoError(t, err)
	assert.Equal(t, IngestStatusSkipped, third.Status)
	assert.Equal(t, "unchanged", third.Reason)
}

func TestIngest_FallbackOnlyModeStillSkipsUnchanged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(nil, IngestOptions{})

	first, err := f.ingest.IngestText(ctx, "finland.txt", finlandDoc)
	require.NoError(t, err)
	require.True(t, first.Degraded)

	again, err := f.ingest.IngestText(ctx, "finland.txt", finlandDoc)
	require.NoError(t, err)
	assert.Equal(t, IngestStatusSkipped, again.Status)
}

type memArchive struct {
	objects map[string][]byte
}

func (m *memArchive) Put(_ context.Context, name, _ string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.objects[name] = b
	return "mem://" + name, nil
}

func (m *memArchive) Remove(_ context.Context, name string) error {
	delete(m.objects, name)
	return nil
}

func (m *memArchive) Close() error { return nil }

func docx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()
	body := ""
	for _, p := range paragraphs {
		body += "<w:p><w:r><w:t>" + p + "</w:t></w:r></w:p>"
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = w.Write([]byte(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` + body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestIngest_DocumentIsExtractedAndArchived(t *testing.T) {
	ctx := context.Background()
	archive := &memArchive{objects: map[string][]byte{}}
	f := newFixture(newVocabEmbedder(), IngestOptions{Archiver: archive})
	data := docx(t, "Finland is in Northern Europe.", "Helsinki is the capital.")

	res, err := f.ingest.IngestDocument(ctx, "uploads/finland.docx", data)
	require.NoError(t, err)
	assert.Equal(t, "finland.docx", res.FileName)
	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, "mem://documents/finland.docx", res.ArchiveURI)
	assert.Equal(t, data, archive.objects["documents/finland.docx"])

	require.NoError(t, f.ingest.DeleteFile(ctx, "finland.docx"))
	assert.Empty(t, archive.objects)
	files, err := f.ingest.ListFiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestIngest_DocumentRejections(t *testing.T) {
	f := newFixture(newVocabEmbedder(), IngestOptions{MaxBytes: 16})

	_, err := f.ingest.IngestDocument(context.Background(), "photo.png", []byte{1})
	assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

	_, err = f.ingest.IngestDocument(context.Background(), "big.txt", bytes.Repeat([]byte("a"), 17))
	assert.True(t, utils.IsCode(err, utils.CodeTooLarge))
}

func TestIngest_DeleteUnknownIsNoop(t *testing.T) {
	f := newFixture(newVocabEmbedder(), IngestOptions{})

	assert.NoError(t, f.ingest.DeleteFile(context.Background(), "never-uploaded.txt"))
}

type recordingQueue struct {
	jobs []IngestJob
	err  error
}

func (q *recordingQueue) Enqueue(_ context.Context, job IngestJob) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.jobs = append(q.jobs, job)
	return "1-0", nil
}

func TestIngest_Enqueue(t *testing.T) {
	ctx := context.Background()

	f := newFixture(newVocabEmbedder(), IngestOptions{})
	_, err := f.ingest.EnqueueDocument(ctx, "a.txt", []byte("text"))
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))

	q := &recordingQueue{}
	f = newFixture(newVocabEmbedder(), IngestOptions{Queue: q})
	res, err := f.ingest.EnqueueDocument(ctx, "a.txt", []byte(finlandDoc))
	require.NoError(t, err)
	assert.Equal(t, IngestStatusQueued, res.Status)
	assert.Equal(t, "1-0", res.JobID)
	require.Len(t, q.jobs, 1)
	assert.Equal(t, IngestJob{FileName: "a.txt", Text: finlandDoc}, q.jobs[0])

	q.err = errors.New("redis down")
	_, err = f.ingest.EnqueueDocument(ctx, "b.txt", []byte("more text"))
	assert.True(t, utils.IsCode(err, utils.CodeUnavailable))
}
