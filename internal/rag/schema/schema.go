package schema

const (
	// MetadataKeyFileID is the key for the owning file's identifier.
	MetadataKeyFileID = "file_id"
	// MetadataKeyFileName is the key for the cleaned source file name.
	MetadataKeyFileName = "filename"
	// MetadataKeyChunkIndex is the key for the chunk's position within its file.
	MetadataKeyChunkIndex = "chunk_index"
	// MetadataKeyTags is the key for the file's normalized tag list.
	MetadataKeyTags = "tags"
	// MetadataKeyTitle is the key for the generated document title.
	MetadataKeyTitle = "title"
	// MetadataKeyPageLabel is the key for the page number or label from the source document.
	MetadataKeyPageLabel = "page_label"
	// MetadataKeyScore is the key for the similarity score attached at query time.
	MetadataKeyScore = "score"
)

// Document is the central data carrier of the pipeline. During ingestion it
// holds an extracted unit of text on its way to becoming an indexed chunk;
// during retrieval it holds a matched chunk with its score in Metadata.
type Document struct {
	// ID is the unique identifier for this chunk. Chunk IDs are derived from
	// the file ID and chunk index so re-ingesting a file overwrites its old
	// vectors instead of accumulating duplicates.
	ID string

	// Text is the string content of the chunk.
	Text string

	// Embedding is the vector representation of the text.
	Embedding []float32

	// Metadata holds arbitrary data about the chunk, keyed by the
	// MetadataKey constants above.
	Metadata map[string]interface{}
}

// Copy returns a shallow copy of the document with its own metadata map.
func (d *Document) Copy() *Document {
	md := make(map[string]interface{}, len(d.Metadata))
	for k, v := range d.Metadata {
		md[k] = v
	}
	return &Document{ID: d.ID, Text: d.Text, Embedding: d.Embedding, Metadata: md}
}
