package intercept

// resolveMask implements the §4.5.5 resolution order: per-field attribute
// on the decrypt marker beats the method-level default beats none.
func resolveMask(opts CallOptions, column string) (name, uid string) {
	if opts.FieldMaskPolicyName != nil {
		if n, ok := opts.FieldMaskPolicyName[column]; ok {
			return n, opts.FieldMaskPolicyUID[column]
		}
	}
	return opts.MaskPolicyName, opts.MaskPolicyUID
}
