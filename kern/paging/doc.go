// Package paging manages per-address-space two-level page tables and
// services page faults by lazy allocation.
//
// A Context (paging.Init) records which frame pool serves kernel-region
// needs and which serves user-region faults, and installs the page-fault ISR
// on the machine. Each PageTable owns one directory frame; construction
// identity-maps the first 4 MiB and installs the recursive self-mapping at
// directory slot 1023, so an active table can always edit itself through the
// fixed virtual windows 0xFFC00000+ (page tables) and 0xFFFFF000 (the
// directory).
//
// Fault service is two-phase by design: a fault under a missing directory
// entry only materializes the page table and returns; the access re-fires
// and the second fault installs the leaf mapping.
package paging
