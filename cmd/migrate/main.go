package main

import (
	"fmt"
	"log"

	"ai-tutor-be/internal/config"
	"ai-tutor-be/internal/model"
	"ai-tutor-be/pkg/database"
	"ai-tutor-be/pkg/embedding"
)

func main() {
	// 1. Load configuration
	cfg := config.Load()
	if cfg.Database.Connection == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	// 2. Connect
	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	// 3. Extensions and functions AutoMigrate does not manage
	log.Println("Step 1: Setting up extensions...")
	setupSQL := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE EXTENSION IF NOT EXISTS vector;`,
		`CREATE EXTENSION IF NOT EXISTS unaccent;`,
		// unaccent is only STABLE; generated columns need an IMMUTABLE wrapper
		`CREATE OR REPLACE FUNCTION immutable_unaccent(text) RETURNS text
		 LANGUAGE sql IMMUTABLE PARALLEL SAFE STRICT AS
		 $$ SELECT public.unaccent('public.unaccent'::regdictionary, $1) $$;`,
	}
	for _, sql := range setupSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Fatalf("Error: setup SQL failed: %v", err)
		}
	}

	// 4. Tables
	log.Println("Step 2: Running AutoMigrate...")
	models := []interface{}{
		&model.License{},
		&model.Book{},
		&model.Student{},
		&model.Topic{},
		&model.KnowledgeFragment{},
		&model.ProgressCursor{},
		&model.EmbeddingCacheEntry{},
		&model.ChatSession{},
		&model.ChatMessage{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		log.Fatalf("Error: AutoMigrate failed: %v", err)
	}

	// 5. Search columns and indexes
	log.Println("Step 3: Creating search columns and indexes...")
	postMigrationSQL := []string{
		fmt.Sprintf(`ALTER TABLE knowledge_fragments ADD COLUMN IF NOT EXISTS search_vector tsvector
		 GENERATED ALWAYS AS (to_tsvector('%s'::regconfig, immutable_unaccent(content))) STORED;`, cfg.Rag.TextSearchConfig),
		`CREATE INDEX IF NOT EXISTS idx_fragments_search_vector ON knowledge_fragments USING GIN (search_vector);`,
		`CREATE INDEX IF NOT EXISTS idx_fragments_embedding ON knowledge_fragments USING hnsw (embedding vector_cosine_ops);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_topics_parent_order ON topics (book_id, parent_id, sort_order) WHERE parent_id IS NOT NULL;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_topics_root_order ON topics (book_id, sort_order) WHERE parent_id IS NULL;`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_topics_book_sequence_unique ON topics (book_id, sequence);`,
	}
	if dim := cfg.Ai.EmbeddingDimension; dim > 0 && dim != embedding.DefaultDimension {
		// changing the dimension invalidates every stored vector
		postMigrationSQL = append([]string{
			`DROP INDEX IF EXISTS idx_fragments_embedding;`,
			`TRUNCATE embedding_cache;`,
			fmt.Sprintf(`ALTER TABLE embedding_cache ALTER COLUMN embedding TYPE vector(%d);`, dim),
			fmt.Sprintf(`ALTER TABLE knowledge_fragments ALTER COLUMN embedding TYPE vector(%d) USING NULL::vector(%d);`, dim, dim),
		}, postMigrationSQL...)
	}
	for _, sql := range postMigrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			log.Printf("Warn: Failed to execute post-migration SQL: %v", err)
		}
	}

	log.Println("Success: database migration completed.")
}
