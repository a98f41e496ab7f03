package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Statistics is the dashboard headline block.
type Statistics struct {
	TotalSessions         int64   `json:"total_sessions"`
	AnalyzedSessions      int64   `json:"analyzed_sessions"`
	ReturnedAfterGap      int64   `json:"returned_after_gap"`
	AvgActiveMinutes      float64 `json:"avg_active_minutes"`
	AvgMessagesPerSession float64 `json:"avg_messages_per_session"`
}

// Averages holds the mean scores and message sizes across all analyses.
type Averages struct {
	Originality float64 `bson:"originality" json:"originality"`
	Matching    float64 `bson:"matching" json:"matching"`
	Influence   float64 `bson:"influence" json:"influence"`
	UserSize    float64 `bson:"user_size" json:"user_size"`
	AISize      float64 `bson:"ai_size" json:"ai_size"`
}

// ScoreBucket is one originality-histogram band; Low is the inclusive
// lower boundary.
type ScoreBucket struct {
	Low   int32 `bson:"_id" json:"low"`
	Count int   `bson:"count" json:"count"`
}

// Admin runs the dashboard aggregation queries.
type Admin struct {
	chats    *mongo.Collection
	analyses *mongo.Collection
}

// Statistics aggregates the headline numbers across all sessions.
func (a *Admin) Statistics(ctx context.Context) (Statistics, error) {
	var stats Statistics

	total, err := a.chats.CountDocuments(ctx, bson.D{})
	if err != nil {
		return stats, fmt.Errorf("count sessions: %w", err)
	}
	stats.TotalSessions = total

	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "analyzed", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "returned", Value: bson.D{{Key: "$sum", Value: bson.D{
				{Key: "$cond", Value: bson.A{"$time_stats.user_returned_after_30mins", 1, 0}},
			}}}},
			{Key: "avg_minutes", Value: bson.D{{Key: "$avg", Value: "$time_stats.total_duration_minutes"}}},
			{Key: "avg_messages", Value: bson.D{{Key: "$avg", Value: "$time_stats.total_messages"}}},
		}}},
	}
	cur, err := a.analyses.Aggregate(ctx, pipeline)
	if err != nil {
		return stats, fmt.Errorf("aggregate statistics: %w", err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		Analyzed    int64   `bson:"analyzed"`
		Returned    int64   `bson:"returned"`
		AvgMinutes  float64 `bson:"avg_minutes"`
		AvgMessages float64 `bson:"avg_messages"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return stats, fmt.Errorf("decode statistics: %w", err)
	}
	if len(rows) > 0 {
		stats.AnalyzedSessions = rows[0].Analyzed
		stats.ReturnedAfterGap = rows[0].Returned
		stats.AvgActiveMinutes = rows[0].AvgMinutes
		stats.AvgMessagesPerSession = rows[0].AvgMessages
	}
	return stats, nil
}

// Averages aggregates mean scores and message sizes across all analyses.
func (a *Admin) Averages(ctx context.Context) (Averages, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "originality", Value: bson.D{{Key: "$avg", Value: "$originality_score"}}},
			{Key: "matching", Value: bson.D{{Key: "$avg", Value: "$matching_score"}}},
			{Key: "influence", Value: bson.D{{Key: "$avg", Value: "$assistant_influence_score"}}},
			{Key: "user_size", Value: bson.D{{Key: "$avg", Value: "$size_stats.avg_user_size"}}},
			{Key: "ai_size", Value: bson.D{{Key: "$avg", Value: "$size_stats.avg_ai_size"}}},
		}}},
	}
	cur, err := a.analyses.Aggregate(ctx, pipeline)
	if err != nil {
		return Averages{}, fmt.Errorf("aggregate averages: %w", err)
	}
	defer cur.Close(ctx)

	var rows []Averages
	if err := cur.All(ctx, &rows); err != nil {
		return Averages{}, fmt.Errorf("decode averages: %w", err)
	}
	if len(rows) == 0 {
		return Averages{}, nil
	}
	return rows[0], nil
}

// OriginalityBuckets histograms originality scores into 20-point bands.
func (a *Admin) OriginalityBuckets(ctx context.Context) ([]ScoreBucket, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$bucket", Value: bson.D{
			{Key: "groupBy", Value: "$originality_score"},
			{Key: "boundaries", Value: bson.A{int32(0), int32(20), int32(40), int32(60), int32(80), int32(101)}},
			{Key: "default", Value: int32(-1)},
			{Key: "output", Value: bson.D{
				{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
			}},
		}}},
	}
	cur, err := a.analyses.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate originality buckets: %w", err)
	}
	defer cur.Close(ctx)

	var buckets []ScoreBucket
	if err := cur.All(ctx, &buckets); err != nil {
		return nil, fmt.Errorf("decode originality buckets: %w", err)
	}
	return buckets, nil
}

// FinalIdeas lists every non-empty final idea, for theme extraction.
func (a *Admin) FinalIdeas(ctx context.Context) ([]string, error) {
	cur, err := a.chats.Find(ctx, bson.D{
		{Key: "final_idea", Value: bson.D{
			{Key: "$exists", Value: true},
			{Key: "$ne", Value: ""},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("list final ideas: %w", err)
	}
	defer cur.Close(ctx)

	var docs []struct {
		FinalIdea string `bson:"final_idea"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode final ideas: %w", err)
	}

	ideas := make([]string, 0, len(docs))
	for _, d := range docs {
		ideas = append(ideas, d.FinalIdea)
	}
	return ideas, nil
}
