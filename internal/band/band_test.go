package band_test

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/mind-engage/ielts-practice/internal/band"
	. "github.com/smartystreets/goconvey/convey"
)

func mustBand(raw int, skill band.Skill) float64 {
	b, err := band.ConvertRawToBand(raw, skill)
	So(err, ShouldBeNil)
	return b
}

func TestConvertRawToBand(t *testing.T) {
	Convey("Given the published conversion tables", t, func() {
		Convey("Boundary rows map exactly", func() {
			So(mustBand(39, band.Listening), ShouldEqual, 9.0)
			So(mustBand(38, band.Listening), ShouldEqual, 8.5)
			So(mustBand(0, band.Listening), ShouldEqual, 3.5)
			So(mustBand(30, band.Reading), ShouldEqual, 7.0)
			So(mustBand(9, band.Reading), ShouldEqual, 3.5)
		})

		Convey("Listening and Reading tables are independent", func() {
			So(mustBand(30, band.Listening), ShouldEqual, 7.0)
			So(mustBand(30, band.Reading), ShouldEqual, 7.0)
			So(mustBand(33, band.Listening), ShouldEqual, 7.5)
			So(mustBand(33, band.Reading), ShouldEqual, 7.5)
			So(mustBand(32, band.Listening), ShouldEqual, 7.5)
			So(mustBand(32, band.Reading), ShouldEqual, 7.0)
			So(mustBand(32, band.Listening), ShouldNotEqual, mustBand(32, band.Reading))
		})

		Convey("Every threshold row is reachable at its minimum and not one below", func() {
			for _, tbl := range band.Tables() {
				for i, th := range tbl.Thresholds {
					So(mustBand(th.Min, tbl.Skill), ShouldEqual, th.Band)
					below := tbl.Floor
					if i+1 < len(tbl.Thresholds) {
						below = tbl.Thresholds[i+1].Band
					}
					So(mustBand(th.Min-1, tbl.Skill), ShouldEqual, below)
				}
			}
		})

		Convey("The conversion is monotonically non-decreasing", func() {
			for _, tbl := range band.Tables() {
				prev := math.Inf(-1)
				for raw := -5; raw <= 45; raw++ {
					b := mustBand(raw, tbl.Skill)
					So(b, ShouldBeGreaterThanOrEqualTo, prev)
					prev = b
				}
			}
		})

		Convey("Out-of-range raw scores degrade to the table ends", func() {
			So(mustBand(-3, band.Listening), ShouldEqual, 3.5)
			So(mustBand(120, band.Reading), ShouldEqual, 9.0)
		})

		Convey("An unknown skill fails loudly", func() {
			_, err := band.ConvertRawToBand(20, band.Skill("writing"))
			So(errors.Is(err, band.ErrInvalidSkill), ShouldBeTrue)
		})

		Convey("General Training Reading is a separate table", func() {
			So(mustBand(39, band.ReadingGeneral), ShouldEqual, 8.5)
			So(mustBand(30, band.ReadingGeneral), ShouldEqual, 6.0)
			So(mustBand(14, band.ReadingGeneral), ShouldEqual, 3.5)
		})
	})
}

func TestParseSkill(t *testing.T) {
	Convey("ParseSkill normalises request tags", t, func() {
		s, err := band.ParseSkill("  Listening ")
		So(err, ShouldBeNil)
		So(s, ShouldEqual, band.Listening)

		_, err = band.ParseSkill("speaking")
		So(errors.Is(err, band.ErrInvalidSkill), ShouldBeTrue)
	})
}

func TestConvertScaled(t *testing.T) {
	Convey("Given a practice section with a non-standard item count", t, func() {
		Convey("A full section converts unchanged", func() {
			b, err := band.ConvertScaled(32, 40, band.Listening)
			So(err, ShouldBeNil)
			So(b, ShouldEqual, 7.5)
		})

		Convey("A 20-item set is projected onto 40 items", func() {
			b, err := band.ConvertScaled(15, 20, band.Reading)
			So(err, ShouldBeNil)
			So(b, ShouldEqual, 7.0)
		})

		Convey("Projection rounds half up", func() {
			// 5/13 of 40 is 15.38
			b, err := band.ConvertScaled(5, 13, band.Reading)
			So(err, ShouldBeNil)
			So(b, ShouldEqual, 5.0)
		})

		Convey("Out-of-range input is rejected", func() {
			_, err := band.ConvertScaled(-1, 40, band.Listening)
			So(errors.Is(err, band.ErrInvalidInput), ShouldBeTrue)
			_, err = band.ConvertScaled(41, 40, band.Listening)
			So(errors.Is(err, band.ErrInvalidInput), ShouldBeTrue)
			_, err = band.ConvertScaled(0, 0, band.Listening)
			So(errors.Is(err, band.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("An unknown skill still fails with ErrInvalidSkill", func() {
			_, err := band.ConvertScaled(10, 40, band.Skill("grammar"))
			So(errors.Is(err, band.ErrInvalidSkill), ShouldBeTrue)
		})
	})
}

func TestCalculateOverallBand(t *testing.T) {
	Convey("Given per-criterion scores", t, func() {
		Convey("A mean already on the half-band grid is returned as is", func() {
			b, err := band.CalculateOverallBand([]float64{6, 7, 6, 7})
			So(err, ShouldBeNil)
			So(b, ShouldEqual, 6.5)
		})

		Convey("Quarter remainders round up to the next half band", func() {
			b, err := band.CalculateOverallBand([]float64{6, 6, 7, 8})
			So(err, ShouldBeNil)
			So(b, ShouldEqual, 7.0)

			b, err = band.CalculateOverallBand([]float64{6, 6, 6, 7})
			So(err, ShouldBeNil)
			So(b, ShouldEqual, 6.5)
		})

		Convey("Smaller remainders round to the nearest half band", func() {
			b, err := band.CalculateOverallBand([]float64{6, 6, 6, 6.5})
			So(err, ShouldBeNil)
			So(b, ShouldEqual, 6.0)
		})

		Convey("Empty input is rejected", func() {
			_, err := band.CalculateOverallBand(nil)
			So(errors.Is(err, band.ErrInvalidInput), ShouldBeTrue)
			_, err = band.CalculateOverallBand([]float64{})
			So(errors.Is(err, band.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("Non-finite input is rejected", func() {
			_, err := band.CalculateOverallBand([]float64{6, math.NaN()})
			So(errors.Is(err, band.ErrInvalidInput), ShouldBeTrue)
			_, err = band.CalculateOverallBand([]float64{math.Inf(1)})
			So(errors.Is(err, band.ErrInvalidInput), ShouldBeTrue)
		})

		Convey("Order does not matter", func() {
			a, _ := band.CalculateOverallBand([]float64{5, 9})
			b, _ := band.CalculateOverallBand([]float64{9, 5})
			So(a, ShouldEqual, b)
		})

		Convey("Re-rounding an already rounded band is stable", func() {
			for v := 0.0; v <= 9.0; v += 0.5 {
				b, err := band.CalculateOverallBand([]float64{v})
				So(err, ShouldBeNil)
				So(b, ShouldEqual, v)
			}
		})
	})
}

func TestConcurrentUse(t *testing.T) {
	Convey("Conversions are safe to call from many goroutines", t, func() {
		var wg sync.WaitGroup
		results := make([]float64, 64)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = band.ConvertRawToBand(i%41, band.Listening)
			}(i)
		}
		wg.Wait()
		for i, r := range results {
			want, _ := band.ConvertRawToBand(i%41, band.Listening)
			So(r, ShouldEqual, want)
		}
	})
}
