package domain

// KeyPrefix namespaces every key valdex writes to a shared key-value store.
const KeyPrefix = "valdex:"
