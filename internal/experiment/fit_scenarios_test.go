package experiment

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/invlab/internal/invert"
)

func evenGrid(lo, hi float64, n int) []float64 {
	xs := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range xs {
		xs[i] = lo + float64(i)*step
	}
	return xs
}

var _ = Describe("Experiment", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("fitting a clean straight line", func() {
		It("recovers the exact coefficients without damping", func() {
			xs := evenGrid(0, 9, 10)
			cfg := DefaultConfig()
			cfg.Params.X = xs
			cfg.Engine.Lambda = 0

			data := make(invert.Vector, len(xs))
			for i, x := range xs {
				data[i] = 2 + 0.5*x
			}
			errs, err := invert.ErrorModel(data, 0.1, 0)
			Expect(err).NotTo(HaveOccurred())

			exp := New(cfg)
			Expect(exp.Setup(data, errs)).To(Succeed())

			fr, err := exp.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fr.Result.Status).To(Equal(invert.Converged))
			Expect(fr.Result.Model[0]).To(BeNumerically("~", 2.0, 1e-8))
			Expect(fr.Result.Model[1]).To(BeNumerically("~", 0.5, 1e-8))
			Expect(fr.Summary.ChiSq).To(BeNumerically("<", 1e-12))
		})
	})

	Describe("fitting noisy synthetic data", func() {
		It("lands within the noise and reaches chi-square near one", func() {
			xs := evenGrid(0, 29, 30)
			cfg := DefaultConfig()
			cfg.Params.X = xs
			cfg.Engine.Lambda = 0

			reg := NewRegistry()
			fop, err := reg.GetModel("polynomial", cfg.Params)
			Expect(err).NotTo(HaveOccurred())

			data, errs, err := Synthesize(fop, invert.Vector{1.1, 2.1}, 0.5, 0, 42)
			Expect(err).NotTo(HaveOccurred())

			exp := New(cfg)
			Expect(exp.Setup(data, errs)).To(Succeed())

			fr, err := exp.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fr.Result.Status).To(Equal(invert.Converged))
			Expect(fr.Result.Model[0]).To(BeNumerically("~", 1.1, 1.0))
			Expect(fr.Result.Model[1]).To(BeNumerically("~", 2.1, 0.1))
			Expect(fr.Summary.ChiSq).To(BeNumerically("<", 2.5))
			Expect(fr.Summary.ChiSq).To(BeNumerically(">", 0.1))
		})
	})

	Describe("fitting an exponential decay in log space", func() {
		It("converges to the true amplitude and rate", func() {
			xs := evenGrid(0, 5, 21)
			cfg := DefaultConfig()
			cfg.Model = "expdecay"
			cfg.Params = ModelParams{X: xs, Terms: 1}
			cfg.Transform = "log"
			cfg.Engine.Lambda = 0
			cfg.Engine.MaxIterations = 50
			cfg.Engine.TargetChiSq = 1e-8
			cfg.Engine.ChiSqTolerance = 0

			reg := NewRegistry()
			fop, err := reg.GetModel("expdecay", cfg.Params)
			Expect(err).NotTo(HaveOccurred())
			clean, err := fop.Response(invert.Vector{5, 0.8})
			Expect(err).NotTo(HaveOccurred())
			errs, err := invert.ErrorModel(clean, 0.01, 0)
			Expect(err).NotTo(HaveOccurred())

			exp := New(cfg)
			Expect(exp.Setup(clean, errs)).To(Succeed())

			fr, err := exp.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fr.Result.Status).To(Equal(invert.Converged))
			Expect(fr.Result.Stop).To(Equal(invert.TargetReached))
			Expect(fr.Result.Model[0]).To(BeNumerically("~", 5.0, 1e-3))
			Expect(fr.Result.Model[1]).To(BeNumerically("~", 0.8, 1e-3))
			Expect(fr.Summary.ChiSq).To(BeNumerically("<=", 1e-8))
		})
	})

	Describe("multi-start ensemble", func() {
		It("returns one result per start and a converged winner", func() {
			xs := evenGrid(0, 5, 21)
			cfg := DefaultConfig()
			cfg.Model = "expdecay"
			cfg.Params = ModelParams{X: xs, Terms: 1}
			cfg.Transform = "log"
			cfg.Engine.Lambda = 0
			cfg.Engine.MaxIterations = 50
			cfg.Starts = 3
			cfg.Spread = 0.3
			cfg.Seed = 7

			reg := NewRegistry()
			fop, err := reg.GetModel("expdecay", cfg.Params)
			Expect(err).NotTo(HaveOccurred())
			clean, err := fop.Response(invert.Vector{5, 0.8})
			Expect(err).NotTo(HaveOccurred())
			errs, err := invert.ErrorModel(clean, 0.01, 0)
			Expect(err).NotTo(HaveOccurred())

			exp := New(cfg)
			Expect(exp.Setup(clean, errs)).To(Succeed())

			fr, err := exp.Run(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(fr.Runs).To(HaveLen(3))
			Expect(fr.Result.Status).To(Equal(invert.Converged))
			Expect(fr.Result.FinalChiSq()).To(BeNumerically("<=", 1.1))

			for _, r := range fr.Runs {
				Expect(r).NotTo(BeNil())
				if r.Status != invert.Failed {
					Expect(fr.Result.FinalChiSq()).To(BeNumerically("<=", r.FinalChiSq()))
				}
			}
		})
	})

	Describe("setup validation", func() {
		var xs []float64

		BeforeEach(func() {
			xs = evenGrid(0, 4, 5)
		})

		It("rejects an unknown model", func() {
			cfg := DefaultConfig()
			cfg.Model = "spline"
			cfg.Params.X = xs
			err := New(cfg).Setup(make(invert.Vector, 5), invert.Vector{1, 1, 1, 1, 1})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown model"))
		})

		It("rejects data that does not match the abscissa", func() {
			cfg := DefaultConfig()
			cfg.Params.X = xs
			err := New(cfg).Setup(make(invert.Vector, 3), invert.Vector{1, 1, 1})
			Expect(err).To(HaveOccurred())
		})

		It("rejects mismatched error vectors", func() {
			cfg := DefaultConfig()
			cfg.Params.X = xs
			err := New(cfg).Setup(make(invert.Vector, 5), invert.Vector{1, 1})
			Expect(err).To(HaveOccurred())
		})

		It("rejects an unknown transform", func() {
			cfg := DefaultConfig()
			cfg.Params.X = xs
			cfg.Transform = "atan"
			err := New(cfg).Setup(make(invert.Vector, 5), invert.Vector{1, 1, 1, 1, 1})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown transform"))
		})

		It("rejects inverted loglu bounds", func() {
			cfg := DefaultConfig()
			cfg.Params.X = xs
			cfg.Transform = "loglu"
			cfg.Lo, cfg.Up = 10, 1
			err := New(cfg).Setup(make(invert.Vector, 5), invert.Vector{1, 1, 1, 1, 1})
			Expect(err).To(HaveOccurred())
		})

		It("rejects an unknown policy", func() {
			cfg := DefaultConfig()
			cfg.Params.X = xs
			cfg.Policy = "annealing"
			err := New(cfg).Setup(make(invert.Vector, 5), invert.Vector{1, 1, 1, 1, 1})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown lambda policy"))
		})

		It("refuses to run before setup", func() {
			_, err := New(DefaultConfig()).Run(ctx)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("not setup"))
		})
	})

	Describe("Synthesize", func() {
		It("is deterministic for a fixed seed and stays inside the noise envelope", func() {
			xs := evenGrid(0, 9, 10)
			fop := NewRegistry()
			model, err := fop.GetModel("polynomial", ModelParams{X: xs, Degree: 1})
			Expect(err).NotTo(HaveOccurred())

			truth := invert.Vector{3, 1}
			a, ea, err := Synthesize(model, truth, 0.2, 0, 11)
			Expect(err).NotTo(HaveOccurred())
			b, eb, err := Synthesize(model, truth, 0.2, 0, 11)
			Expect(err).NotTo(HaveOccurred())
			Expect(a).To(Equal(b))
			Expect(ea).To(Equal(eb))

			c, _, err := Synthesize(model, truth, 0.2, 0, 12)
			Expect(err).NotTo(HaveOccurred())
			Expect(c).NotTo(Equal(a))

			clean, err := model.Response(truth)
			Expect(err).NotTo(HaveOccurred())
			for i := range clean {
				Expect(math.Abs(a[i]-clean[i])).To(BeNumerically("<", 6*ea[i]))
			}
		})

		It("rejects an all-zero error model", func() {
			xs := evenGrid(0, 4, 5)
			model, err := NewRegistry().GetModel("polynomial", ModelParams{X: xs, Degree: 1})
			Expect(err).NotTo(HaveOccurred())
			_, _, err = Synthesize(model, invert.Vector{1, 1}, 0, 0, 1)
			Expect(err).To(HaveOccurred())
		})

		It("propagates forward model failures", func() {
			xs := evenGrid(0, 4, 5)
			model, err := NewRegistry().GetModel("polynomial", ModelParams{X: xs, Degree: 1})
			Expect(err).NotTo(HaveOccurred())
			_, _, err = Synthesize(model, invert.Vector{1, 2, 3}, 0.1, 0, 1)
			Expect(err).To(HaveOccurred())
		})
	})
})
