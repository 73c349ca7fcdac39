package mysql

// Upserts key on source_url; LAST_INSERT_ID(id) makes the returned id
// valid for both the insert and the update path.
const upsertBusinessSQL = `
INSERT INTO businesses
  (source_url, group_key, display_name, aggregate_rating, review_count, best_rating, worst_rating, last_scraped_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  id               = LAST_INSERT_ID(id),
  display_name     = VALUES(display_name),
  aggregate_rating = VALUES(aggregate_rating),
  review_count     = VALUES(review_count),
  best_rating      = VALUES(best_rating),
  worst_rating     = VALUES(worst_rating),
  last_scraped_at  = VALUES(last_scraped_at),
  updated_at       = CURRENT_TIMESTAMP
`

const insertGroupSQL = `
INSERT INTO business_groups (group_key)
VALUES (?)
ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)
`

// The unique key on (business_id, review_hash) enforces review dedup at
// the storage layer; the caller maps error 1062 to a duplicate signal.
const insertReviewSQL = `
INSERT INTO reviews
  (business_id, group_id, group_key, review_hash, external_id, title, body, rating, author, published_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const recordFailureSQL = `
UPDATE businesses
SET failure_count = failure_count + 1,
    last_error    = ?
WHERE id = ?
`

const clearFailuresSQL = `
UPDATE businesses
SET failure_count = 0,
    last_error    = NULL
WHERE id = ?
`

const businessColumns = `
  id, source_url, group_key, display_name, aggregate_rating,
  review_count, best_rating, worst_rating, last_scraped_at,
  failure_count, last_error
`

const getBusinessSQL = `SELECT ` + businessColumns + ` FROM businesses WHERE id = ?`

const findBusinessByURLSQL = `SELECT ` + businessColumns + ` FROM businesses WHERE source_url = ?`

const listBusinessesSQL = `SELECT ` + businessColumns + ` FROM businesses ORDER BY id`

const listReviewsSQL = `
SELECT id, business_id, group_key, review_hash, external_id, title, body, rating, author, published_at
FROM reviews
WHERE business_id = ?
ORDER BY published_at DESC, id DESC
LIMIT ?
`

// Drops a group once nothing references it anymore.
const deleteOrphanGroupSQL = `
DELETE bg FROM business_groups bg
LEFT JOIN reviews r ON r.group_id = bg.id
WHERE bg.group_key = ? AND r.id IS NULL
`
