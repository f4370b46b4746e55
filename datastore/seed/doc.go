/*
Package seed holds the development dataset: three users and the global
dashboard statistics. It backs the "seed" storage provider and the optional
degraded-read fallback of the repository.
*/
package seed
