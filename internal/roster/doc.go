// Package roster extracts per-student, per-week participation records from a
// roster-style grid: it locates the header row, finds the week columns, classifies
// each mark into a participation count and attendance status, and reshapes the wide
// table into one record per (student, week).
package roster
