package tabular

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"

	"github.com/zatekoja/nearcare/pkg/geo"
)

const exportCSV = `암호화요양기호,요양기관명,종별코드명,진료과목코드명,주소,전화번호,좌표(X),좌표(Y)
JDQ4MTg4MSM1MSMkMSMkMCMkODkkMzgxMzUxIzExIyQxIyQzIyQ4OSQyNjE4MzIjNDEjJDEjJDgjJDgz,가천대길병원,상급종합,응급의학과,인천광역시 남동구 남동대로774번길 21,032-460-3114,126.7091,37.4524
X2,인하대병원,상급종합,내과,인천광역시 중구 인항로 27,032-890-2114,126.6328,37.4574
X3,좌표없는의원,의원,내과,인천광역시 부평구,032-000-0000,,
X4,잘못된좌표의원,의원,내과,인천광역시 부평구,032-000-0000,abc,37.5
X5,,의원,내과,인천광역시 부평구,032-000-0000,126.7,37.5
X6,범위밖의원,의원,내과,어딘가,000,226.7,37.5
`

func TestReadFacilities_UTF8WithBOM(t *testing.T) {
	payload := "\xef\xbb\xbf" + exportCSV

	facilities, stats, err := ReadFacilities(context.Background(), strings.NewReader(payload))
	require.NoError(t, err)

	require.Len(t, facilities, 2)
	assert.Equal(t, "가천대길병원", facilities[0].Name)
	assert.Equal(t, geo.Coordinate{Lat: 37.4524, Lon: 126.7091}, facilities[0].Location)
	assert.Equal(t, "응급의학과", facilities[0].Departments)
	assert.Equal(t, "032-460-3114", facilities[0].Phone)
	assert.Equal(t, "인천광역시 남동구 남동대로774번길 21", facilities[0].Address)
	assert.Equal(t, "X2", facilities[1].ID)

	assert.Equal(t, Stats{Rows: 6, Kept: 2, Dropped: 4, Encoding: "utf-8"}, stats)
}

func TestReadFacilities_EUCKR(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String(exportCSV)
	require.NoError(t, err)

	facilities, stats, err := ReadFacilities(context.Background(), strings.NewReader(encoded))
	require.NoError(t, err)

	require.Len(t, facilities, 2)
	assert.Equal(t, "가천대길병원", facilities[0].Name)
	assert.Equal(t, "인하대병원", facilities[1].Name)
	assert.Equal(t, "euc-kr", stats.Encoding)
}

func TestReadFacilities_EnglishAliases(t *testing.T) {
	payload := "ykiho,name,departments,addr,tel_no,x_pos,y_pos\n" +
		"A1,Seoul Clinic,Family Medicine,Jung-gu,02-111-2222,126.978,37.5665\n"

	facilities, _, err := ReadFacilities(context.Background(), strings.NewReader(payload))
	require.NoError(t, err)

	require.Len(t, facilities, 1)
	assert.Equal(t, "A1", facilities[0].ID)
	assert.Equal(t, geo.Coordinate{Lat: 37.5665, Lon: 126.978}, facilities[0].Location)
}

func TestReadFacilities_MissingColumns(t *testing.T) {
	cases := map[string]string{
		"no coordinates": "요양기관명,주소\n가천대길병원,인천\n",
		"empty file":     "",
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ReadFacilities(context.Background(), strings.NewReader(payload))
			assert.ErrorIs(t, err, ErrMissingColumn)
		})
	}
}

func TestCSVSource_LoadFacilities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hospitals.csv")
	require.NoError(t, os.WriteFile(path, []byte(exportCSV), 0o600))

	facilities, err := NewCSVSource(path).LoadFacilities(context.Background())
	require.NoError(t, err)
	assert.Len(t, facilities, 2)

	_, err = NewCSVSource(filepath.Join(t.TempDir(), "missing.csv")).LoadFacilities(context.Background())
	assert.Error(t, err)
}
