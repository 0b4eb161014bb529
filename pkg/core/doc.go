// Package core defines the shared language of the datarush pipeline engine.
//
// This package contains:
//   - Tabular data (Frame, Table, Tableset)
//   - Operation contracts (Kind, Operator) and parameter schemas (Schema, Field, FieldType)
//   - Pipeline parameter specs (ParameterSpec, ValueType)
//   - The error kinds surfaced by the engine
//
// The Golden Rule: pkg/core imports ONLY stdlib.
// All other packages depend on core, not the reverse.
package core
