package tensor

// Gemm computes dst = a * b^T.
//
// Rows of a are treated as input vectors and rows of b as weight rows, so a
// stacked weight matrix of shape (rows, features) multiplies a batch of shape
// (batch, features) without materialising the transpose.  This matches the
// row-major layout used for recurrent cell parameters, where each gate
// occupies a contiguous block of weight rows.
func Gemm(dst, a, b *Mat) {
	checkGemm(dst, a, b)
	for i := 0; i < a.R; i++ {
		ar := a.Row(i)
		dr := dst.Row(i)
		for j := 0; j < b.R; j++ {
			dr[j] = Dot(ar, b.Row(j))
		}
	}
}

// GemmAcc computes dst += a * b^T.
func GemmAcc(dst, a, b *Mat) {
	checkGemm(dst, a, b)
	for i := 0; i < a.R; i++ {
		ar := a.Row(i)
		dr := dst.Row(i)
		for j := 0; j < b.R; j++ {
			dr[j] += Dot(ar, b.Row(j))
		}
	}
}

func checkGemm(dst, a, b *Mat) {
	if a.C != b.C {
		panic("gemm inner dimension mismatch")
	}
	if dst.R != a.R || dst.C != b.R {
		panic("gemm output shape mismatch")
	}
}
