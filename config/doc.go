/*
Package config loads the userstore configuration from environment variables.

Table names follow the deployment convention ${SERVICE_NAME}-main-${STAGE}
(and -users-/-dashboard- for the legacy tables) unless set explicitly.
STORAGE_PROVIDER selects dynamodb, memory or seed; SEED_FALLBACK lets reads
degrade to the seed dataset when DynamoDB is unavailable.
*/
package config
