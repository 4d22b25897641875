package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// Database schema overview:
// 1. users - Managed by cookie/bearer authentication
// 2. refresh_tokens - Long-lived tokens backing silent re-auth
// 3. resumes - Uploaded resume blobs plus parsed role/skills data
// 4. interviews - One mock interview attempt per row (session lifecycle)
// 5. interview_metrics - Aggregated speech/behavior snapshot per session
// 6. interview_events - Append-only timeline of timestamped observations
// 7. feedback - Scored, categorized, narrated report (1:1 with interview)
