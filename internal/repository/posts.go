package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sparkfeed/internal/model"
)

var ErrPostNotFound = errors.New("post not found")

type PostRepo struct {
	dbPool *pgxpool.Pool
}

func NewPostRepo(db *pgxpool.Pool) *PostRepo {
	return &PostRepo{dbPool: db}
}

const postColumns = `p.id, p.author_id, p.content, p.prompt, p.media_url, p.media_type,
	p.token_cost, p.is_ai_generated, p.generation_status, p.like_count, p.comment_count,
	p.created_at, pr.display_name, pr.avatar_url`

// Create inserts a fully assembled post. The caller sets the id; created_at
// comes back from the database.
func (r *PostRepo) Create(ctx context.Context, post *model.Post) error {
	err := r.dbPool.QueryRow(ctx,
		`INSERT INTO posts (id, author_id, content, prompt, media_url, media_type,
		                    token_cost, is_ai_generated, generation_status)
		 VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''),
		         $7, $8, NULLIF($9, ''))
		 RETURNING created_at`,
		post.ID, post.AuthorID, post.Content, post.Prompt, post.MediaURL,
		string(post.MediaType), post.TokenCost, post.IsAIGenerated,
		post.GenerationStatus,
	).Scan(&post.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}
	return nil
}

func (r *PostRepo) GetByID(ctx context.Context, id string) (*model.Post, error) {
	row := r.dbPool.QueryRow(ctx,
		`SELECT `+postColumns+`
		 FROM posts p JOIN profiles pr ON pr.id = p.author_id
		 WHERE p.id = $1`, id)
	post, err := scanPost(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return post, nil
}

// ListRecent returns the newest posts first ("recent" and "for-you" tabs).
func (r *PostRepo) ListRecent(ctx context.Context, limit int) ([]*model.Post, error) {
	return r.list(ctx,
		`SELECT `+postColumns+`
		 FROM posts p JOIN profiles pr ON pr.id = p.author_id
		 ORDER BY p.created_at DESC LIMIT $1`, limit)
}

// ListTrending orders by like count ("trending" tab).
func (r *PostRepo) ListTrending(ctx context.Context, limit int) ([]*model.Post, error) {
	return r.list(ctx,
		`SELECT `+postColumns+`
		 FROM posts p JOIN profiles pr ON pr.id = p.author_id
		 ORDER BY p.like_count DESC, p.created_at DESC LIMIT $1`, limit)
}

// ListFollowing returns posts authored by accounts the viewer follows.
func (r *PostRepo) ListFollowing(ctx context.Context, viewerID string, limit int) ([]*model.Post, error) {
	return r.list(ctx,
		`SELECT `+postColumns+`
		 FROM posts p
		 JOIN profiles pr ON pr.id = p.author_id
		 JOIN follows f ON f.following_id = p.author_id AND f.follower_id = $1
		 ORDER BY p.created_at DESC LIMIT $2`, viewerID, limit)
}

func (r *PostRepo) ListByAuthor(ctx context.Context, authorID string, limit int) ([]*model.Post, error) {
	return r.list(ctx,
		`SELECT `+postColumns+`
		 FROM posts p JOIN profiles pr ON pr.id = p.author_id
		 WHERE p.author_id = $1
		 ORDER BY p.created_at DESC LIMIT $2`, authorID, limit)
}

// Search matches generation prompts, most liked first.
func (r *PostRepo) Search(ctx context.Context, query string, limit int) ([]*model.Post, error) {
	return r.list(ctx,
		`SELECT `+postColumns+`
		 FROM posts p JOIN profiles pr ON pr.id = p.author_id
		 WHERE p.prompt ILIKE '%' || $1 || '%'
		 ORDER BY p.like_count DESC, p.created_at DESC LIMIT $2`, query, limit)
}

// Like records a like and bumps the counter in one transaction. A duplicate
// like inserts nothing and leaves the counter alone.
func (r *PostRepo) Like(ctx context.Context, accountID, postID string) error {
	return r.toggleLike(ctx, accountID, postID,
		`INSERT INTO likes (account_id, post_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		`UPDATE posts SET like_count = like_count + 1 WHERE id = $1`)
}

func (r *PostRepo) Unlike(ctx context.Context, accountID, postID string) error {
	return r.toggleLike(ctx, accountID, postID,
		`DELETE FROM likes WHERE account_id = $1 AND post_id = $2`,
		`UPDATE posts SET like_count = like_count - 1 WHERE id = $1 AND like_count > 0`)
}

func (r *PostRepo) toggleLike(ctx context.Context, accountID, postID, likeSQL, countSQL string) error {
	tx, err := r.dbPool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin like tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, likeSQL, accountID, postID)
	if err != nil {
		return fmt.Errorf("failed to toggle like: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tx.Commit(ctx) // idempotent repeat
	}
	if _, err := tx.Exec(ctx, countSQL, postID); err != nil {
		return fmt.Errorf("failed to update like count: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *PostRepo) list(ctx context.Context, sql string, args ...interface{}) ([]*model.Post, error) {
	rows, err := r.dbPool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	var posts []*model.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func scanPost(row pgx.Row) (*model.Post, error) {
	var (
		post             model.Post
		author           model.AuthorInfo
		prompt           *string
		mediaURL         *string
		mediaType        *string
		generationStatus *string
	)
	err := row.Scan(&post.ID, &post.AuthorID, &post.Content, &prompt, &mediaURL,
		&mediaType, &post.TokenCost, &post.IsAIGenerated, &generationStatus,
		&post.LikeCount, &post.CommentCount, &post.CreatedAt,
		&author.DisplayName, &author.AvatarURL)
	if err != nil {
		return nil, err
	}
	if prompt != nil {
		post.Prompt = *prompt
	}
	if mediaURL != nil {
		post.MediaURL = *mediaURL
	}
	if mediaType != nil {
		post.MediaType = model.MediaType(*mediaType)
	}
	if generationStatus != nil {
		post.GenerationStatus = *generationStatus
	}
	post.Author = &author
	return &post, nil
}
