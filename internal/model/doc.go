// Package model provides the record types shared by every mnemo component.
//
// This package contains type definitions and small value helpers only. All
// other internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Entry is the ledger record; nothing in the module mutates one after it
//     is appended
//   - Money is stored as int64 minor units (cents), never floats
//   - Calendar days are Day values (YYYY-MM-DD); instants are UTC time.Time
//   - All JSON tags use snake_case
package model
