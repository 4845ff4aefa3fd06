// Package files is the attachment vault of the buffer client.
//
// Every attachment is one row in the attachments table, keyed by the
// composite key derived from its metadata (models.AttachmentMeta.Key). Cached
// bytes live in a content addressed blobs table keyed by SHA-256; an
// attachment row references its blob through content_hash, and a blob is
// dropped as soon as no attachment references it.
//
// Rows without a content hash are name-only placeholders whose bytes live on
// the remote backend (residency Server).
//
//	repo := files.NewSQLiteRepository(tx)
//	key, _ := repo.AddAttachment(ctx, meta, content, models.ResidencyUpload)
//	a, _ := repo.GetContentByID(ctx, key)
package files
